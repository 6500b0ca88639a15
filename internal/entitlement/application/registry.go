package application

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Store StoreConfig
	// WarmStart makes Open wait for the first fetch of a new tenant,
	// bounded by the store refresh timeout.
	WarmStart bool
}

// Registry owns one Store per open tenant session.
type Registry struct {
	cfg    RegistryConfig
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Store.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		stores: make(map[string]*Store),
	}
}

// Open returns the store for tenantID, creating it on first use.
// Every call counts as a mount and triggers a background refresh;
// a newly created store is warmed synchronously when WarmStart is set.
func (r *Registry) Open(ctx context.Context, tenantID string) (*Store, error) {
	if r == nil {
		return nil, domain.ErrTenantRequired
	}
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}

	r.mu.Lock()
	store, ok := r.stores[tenantID]
	if !ok {
		store = NewStore(tenantID, r.cfg.Store)
		r.stores[tenantID] = store
	}
	r.mu.Unlock()

	if ok || !r.cfg.WarmStart {
		store.Mount()
		return store, nil
	}

	warmCtx, cancel := context.WithTimeout(ctx, store.timeout)
	defer cancel()
	if err := store.Refetch(warmCtx); err != nil {
		r.logger.Warn("warm start fetch failed", "tenant_id", tenantID, "error", err)
	}
	return store, nil
}

// Get returns the open store for tenantID, or nil.
func (r *Registry) Get(tenantID string) *Store {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[tenantID]
}

// Evaluator returns an evaluator bound to the tenant's store.
// Unknown tenants get the fail-closed default.
func (r *Registry) Evaluator(tenantID string) *Evaluator {
	return NewEvaluator(r.Get(tenantID))
}

// Invalidate triggers a background refresh if the tenant is open.
func (r *Registry) Invalidate(tenantID string) bool {
	store := r.Get(tenantID)
	if store == nil {
		return false
	}
	store.Invalidate()
	return true
}

// Close ends the tenant session and discards its snapshot.
func (r *Registry) Close(tenantID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	store := r.stores[tenantID]
	delete(r.stores, tenantID)
	r.mu.Unlock()
	store.Close()
}

// CloseAll ends every open session.
func (r *Registry) CloseAll() {
	if r == nil {
		return
	}
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}

// Tenants lists the open tenant IDs in sorted order.
func (r *Registry) Tenants() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.stores))
	for id := range r.stores {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
