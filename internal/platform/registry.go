package platform

import (
	"sync"
)

// Registry manages marketplace adapter registration and retrieval.
// The engine and the competitor probe only ever reach adapters through
// it, so swapping an adapter (or wrapping one in a circuit breaker) is
// a registration-time concern.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register registers an adapter under its slug, replacing any previous
// registration for the same marketplace.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Slug()] = adapter
}

// Get retrieves an adapter by marketplace slug.
func (r *Registry) Get(slug string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[slug]
	return adapter, ok
}

// Slugs returns all registered marketplace slugs.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.adapters))
	for slug := range r.adapters {
		slugs = append(slugs, slug)
	}
	return slugs
}

// IsRegistered checks if a marketplace has an adapter.
func (r *Registry) IsRegistered(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[slug]
	return ok
}

// Unregister removes an adapter from the registry.
func (r *Registry) Unregister(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, slug)
}
