// ABOUTME: Registry of equipment kinds, keyed by URL slug.
// ABOUTME: Built once at startup and injected into the API, UI and export handlers.

package equipment

import (
	"fmt"
	"sync"
)

// Registry holds the equipment kinds the service exposes, in registration
// order.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
	order []string
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// Register adds a kind to the registry
func (r *Registry) Register(k *Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[k.Slug]; exists {
		panic(fmt.Sprintf("equipment kind %q already registered", k.Slug))
	}
	r.kinds[k.Slug] = k
	r.order = append(r.order, k.Slug)
}

// Get retrieves a kind by slug
func (r *Registry) Get(slug string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[slug]
	return k, ok
}

// All returns every kind in registration order
func (r *Registry) All() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]*Kind, 0, len(r.order))
	for _, slug := range r.order {
		kinds = append(kinds, r.kinds[slug])
	}
	return kinds
}

// Slugs returns every registered slug in registration order
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultRegistry registers the four site-walk schedules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(AccessPoints())
	r.Register(Cameras())
	r.Register(Elevators())
	r.Register(Intercoms())
	return r
}
