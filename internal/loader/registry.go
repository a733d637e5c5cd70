package loader

import (
	"sync"

	"flowrun/internal"
)

// Registry stores resolved definitions keyed by declared name. The first registration of a
// name wins; later ones are reported as shadowed.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*internal.ResolvedDefinition
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*internal.ResolvedDefinition{}}
}

// Register adds def unless its name is already taken. It returns false when shadowed.
func (r *Registry) Register(def *internal.ResolvedDefinition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := def.Definition.Name
	if _, exists := r.byName[name]; exists {
		return false
	}
	r.byName[name] = def
	r.order = append(r.order, name)
	return true
}

func (r *Registry) Get(name string) (*internal.ResolvedDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// All returns the definitions in registration order.
func (r *Registry) All() []*internal.ResolvedDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*internal.ResolvedDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
