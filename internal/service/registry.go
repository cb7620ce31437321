package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/port/snapshot"
)

// StoreFactory builds the snapshot store for a workflow handle. The registry
// uses it to give each manager its own durable backend.
type StoreFactory func(handle string) (snapshot.Store, error)

// Registry maps workflow handles to manager instances. It is an explicit
// object owned by the composition root; nothing registers itself at import
// time.
type Registry struct {
	mu       sync.Mutex
	factory  StoreFactory
	buildMgr func(ctx context.Context, store snapshot.Store) (*Manager, error)
	managers map[string]*Manager
	stores   map[string]snapshot.Store
}

// NewRegistry creates a registry. buildMgr constructs a manager around a
// freshly opened store; it exists so the root can thread the bus, cache, and
// options without the registry knowing about them.
func NewRegistry(factory StoreFactory, buildMgr func(ctx context.Context, store snapshot.Store) (*Manager, error)) *Registry {
	return &Registry{
		factory:  factory,
		buildMgr: buildMgr,
		managers: make(map[string]*Manager),
		stores:   make(map[string]snapshot.Store),
	}
}

// Open returns the manager for a handle, creating it on first use.
func (r *Registry) Open(ctx context.Context, handle string) (*Manager, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: handle is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if mgr, ok := r.managers[handle]; ok {
		return mgr, nil
	}

	store, err := r.factory(handle)
	if err != nil {
		return nil, fmt.Errorf("open store for %q: %w", handle, err)
	}
	mgr, err := r.buildMgr(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build manager for %q: %w", handle, err)
	}

	r.managers[handle] = mgr
	r.stores[handle] = store
	return mgr, nil
}

// Get returns the manager for a handle if it is already open.
func (r *Registry) Get(handle string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mgr, ok := r.managers[handle]
	return mgr, ok
}

// Handles returns the currently open handles.
func (r *Registry) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.managers))
	for h := range r.managers {
		out = append(out, h)
	}
	return out
}

// Close closes every open store. Managers become unusable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for h, store := range r.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store %q: %w", h, err)
		}
		delete(r.stores, h)
		delete(r.managers, h)
	}
	return firstErr
}
