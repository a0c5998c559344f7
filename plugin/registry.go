package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/transaction"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu          sync.RWMutex
	plugins     []Plugin
	logger      *slog.Logger
	hookTimeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onMinted               []OnMinted
	onBurned               []OnBurned
	onTransferred          []OnTransferred
	onBurnedAll            []OnBurnedAll
	onMutationFailed       []OnMutationFailed
	onUnitOfWorkCommitted  []OnUnitOfWorkCommitted
	onUnitOfWorkRolledBack []OnUnitOfWorkRolledBack
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:      slog.Default(),
		hookTimeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithHookTimeout sets how long a single plugin call may run.
func (r *Registry) WithHookTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.hookTimeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnMinted); ok {
		r.onMinted = append(r.onMinted, v)
	}
	if v, ok := p.(OnBurned); ok {
		r.onBurned = append(r.onBurned, v)
	}
	if v, ok := p.(OnTransferred); ok {
		r.onTransferred = append(r.onTransferred, v)
	}
	if v, ok := p.(OnBurnedAll); ok {
		r.onBurnedAll = append(r.onBurnedAll, v)
	}
	if v, ok := p.(OnMutationFailed); ok {
		r.onMutationFailed = append(r.onMutationFailed, v)
	}
	if v, ok := p.(OnUnitOfWorkCommitted); ok {
		r.onUnitOfWorkCommitted = append(r.onUnitOfWorkCommitted, v)
	}
	if v, ok := p.(OnUnitOfWorkRolledBack); ok {
		r.onUnitOfWorkRolledBack = append(r.onUnitOfWorkRolledBack, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name  string
	iface reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnMinted", reflect.TypeOf((*OnMinted)(nil)).Elem()},
	{"OnBurned", reflect.TypeOf((*OnBurned)(nil)).Elem()},
	{"OnTransferred", reflect.TypeOf((*OnTransferred)(nil)).Elem()},
	{"OnBurnedAll", reflect.TypeOf((*OnBurnedAll)(nil)).Elem()},
	{"OnMutationFailed", reflect.TypeOf((*OnMutationFailed)(nil)).Elem()},
	{"OnUnitOfWorkCommitted", reflect.TypeOf((*OnUnitOfWorkCommitted)(nil)).Elem()},
	{"OnUnitOfWorkRolledBack", reflect.TypeOf((*OnUnitOfWorkRolledBack)(nil)).Elem()},
}

// implementedInterfaces returns the hook names the plugin implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.iface) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, w interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, w)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMinted emits a minted event.
func (r *Registry) EmitMinted(ctx context.Context, tx *transaction.Transaction, balance *account.Account) {
	r.mu.RLock()
	plugins := r.onMinted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMinted(ctx, tx, balance)
		}); err != nil {
			r.logger.Warn("plugin OnMinted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBurned emits a burned event.
func (r *Registry) EmitBurned(ctx context.Context, tx *transaction.Transaction, balance *account.Account) {
	r.mu.RLock()
	plugins := r.onBurned
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBurned(ctx, tx, balance)
		}); err != nil {
			r.logger.Warn("plugin OnBurned failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransferred emits a transferred event.
func (r *Registry) EmitTransferred(ctx context.Context, tx *transaction.Transaction, sender, receiver *account.Account) {
	r.mu.RLock()
	plugins := r.onTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransferred(ctx, tx, sender, receiver)
		}); err != nil {
			r.logger.Warn("plugin OnTransferred failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBurnedAll emits a bulk reset event.
func (r *Registry) EmitBurnedAll(ctx context.Context, owners []string, ns account.Namespace, symbol string, affected int64) {
	r.mu.RLock()
	plugins := r.onBurnedAll
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBurnedAll(ctx, owners, ns, symbol, affected)
		}); err != nil {
			r.logger.Warn("plugin OnBurnedAll failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMutationFailed emits a failed operation event.
func (r *Registry) EmitMutationFailed(ctx context.Context, op string, opErr error) {
	r.mu.RLock()
	plugins := r.onMutationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMutationFailed(ctx, op, opErr)
		}); err != nil {
			r.logger.Warn("plugin OnMutationFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUnitOfWorkCommitted emits a commit event.
func (r *Registry) EmitUnitOfWorkCommitted(ctx context.Context, operations int) {
	r.mu.RLock()
	plugins := r.onUnitOfWorkCommitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUnitOfWorkCommitted(ctx, operations)
		}); err != nil {
			r.logger.Warn("plugin OnUnitOfWorkCommitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUnitOfWorkRolledBack emits a rollback event.
func (r *Registry) EmitUnitOfWorkRolledBack(ctx context.Context, discarded int) {
	r.mu.RLock()
	plugins := r.onUnitOfWorkRolledBack
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUnitOfWorkRolledBack(ctx, discarded)
		}); err != nil {
			r.logger.Warn("plugin OnUnitOfWorkRolledBack failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins never block a balance operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.hookTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
