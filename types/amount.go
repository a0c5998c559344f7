// Package types provides common types used across Wallet.
package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// WeiDecimals is the fixed-point scale used at the API boundary: one token
// unit equals 10^18 minor units.
const WeiDecimals = 18

// MaxDigits bounds the magnitude of any amount. It matches the NUMERIC(78,0)
// columns of the SQL stores, which is enough for a uint256.
const MaxDigits = 78

var (
	// ErrMalformedAmount is returned when a string is not a decimal number.
	ErrMalformedAmount = errors.New("types: malformed amount")

	// ErrFractionalAmount is returned when a value has digits below the
	// minor unit.
	ErrFractionalAmount = errors.New("types: amount has a fractional part")

	// ErrAmountOverflow is returned when a value has more than MaxDigits
	// integer digits.
	ErrAmountOverflow = errors.New("types: amount exceeds 78 digits")
)

// plainDecimal is the only accepted input grammar. Exponent notation is
// rejected before the decimal parser can expand it.
var plainDecimal = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// Amount is an arbitrary-precision integer count of minor units.
// The zero value is 0. Amounts are signed so they can express deltas;
// balances and transaction amounts are never negative.
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for UnmarshalText/Scan.
type Amount struct {
	d decimal.Decimal
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// NewAmount creates an Amount from an int64.
func NewAmount(v int64) Amount { return Amount{d: decimal.NewFromInt(v)} }

// NewAmountFromBigInt creates an Amount from a big.Int. The argument is copied.
func NewAmountFromBigInt(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{d: decimal.NewFromBigInt(new(big.Int).Set(v), 0)}
}

// ParseAmount parses a base-10 integer string such as "100" or "-25".
// Values larger than 64 bits are supported up to MaxDigits digits.
// Fractional digits are rejected unless they are all zero ("10.00" parses
// as 10). Exponent notation is malformed.
func ParseAmount(s string) (Amount, error) {
	a, err := parseInteger(s)
	if err != nil {
		return Amount{}, err
	}
	if a.Overflows() {
		return Amount{}, fmt.Errorf("%w: %d digits", ErrAmountOverflow, a.Digits())
	}
	return a, nil
}

func parseInteger(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrMalformedAmount)
	}
	if !plainDecimal.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q", ErrFractionalAmount, s)
	}

	return normalize(d), nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ToWei converts a token-unit decimal string ("1.5") into minor units
// scaled by 10^18 ("1500000000000000000").
func ToWei(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if !plainDecimal.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	scaled := d.Shift(WeiDecimals)
	if !scaled.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimals", ErrFractionalAmount, s, WeiDecimals)
	}

	a := normalize(scaled)
	if a.Overflows() {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}
	return a, nil
}

// FromWei renders minor units as a token-unit decimal string, trimming
// trailing zeros ("1500000000000000000" becomes "1.5").
func FromWei(a Amount) string {
	return a.d.Shift(-WeiDecimals).String()
}

func normalize(d decimal.Decimal) Amount {
	return Amount{d: decimal.NewFromBigInt(d.BigInt(), 0)}
}

// Arithmetic operations

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Neg returns -a.
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

// Comparison methods

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.d.Sign() }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a.d.Sign() < 0 }

// IsPositive reports whether the amount is above zero.
func (a Amount) IsPositive() bool { return a.d.Sign() > 0 }

// Digits returns the number of base-10 digits of |a|. Zero has one digit.
func (a Amount) Digits() int {
	return len(new(big.Int).Abs(a.d.BigInt()).String())
}

// Overflows reports whether a has more than MaxDigits digits.
func (a Amount) Overflows() bool { return a.Digits() > MaxDigits }

// Conversions

// BigInt returns the amount as a new big.Int.
func (a Amount) BigInt() *big.Int { return a.d.BigInt() }

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String returns the canonical base-10 representation without exponent.
func (a Amount) String() string { return a.d.String() }

// MarshalText implements encoding.TextMarshaler. Amounts travel as JSON strings.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer. Amounts are stored as canonical decimal text.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

// Scan implements sql.Scanner. Stored sums may exceed MaxDigits, so the
// digit cap is not applied.
func (a *Amount) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	case int64:
		*a = NewAmount(v)
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into Amount", src)
	}
	parsed, err := parseInteger(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds up the given amounts.
func Sum(values ...Amount) Amount {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
