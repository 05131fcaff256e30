package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/ferry/pkg/domain"
)

// Loader produces a component on first use. It may block, for instance while
// fetching a code bundle, and should honor ctx.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	mu     sync.Mutex
	load   Loader
	value  any
	loaded bool
}

// Registry maps component names to components. It implements ports.ComponentResolver.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a ready component.
// If a component with the same name exists, it is overwritten.
func (r *Registry) Register(name string, component any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{value: component, loaded: true}
}

// RegisterLazy adds a component loaded on first Resolve and cached afterwards.
// A failed load is not cached.
func (r *Registry) RegisterLazy(name string, load Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{load: load}
}

// Names lists registered components in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a component by name, loading it if needed.
// Concurrent callers for the same name share one load.
func (r *Registry) Resolve(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrComponentNotFound, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.value, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := e.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load component %s: %w", name, err)
	}
	e.value = v
	e.loaded = true
	return v, nil
}
