package wallet

import "github.com/xraph/wallet/id"

// ID is the primary identifier type for all Wallet entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
