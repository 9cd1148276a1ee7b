package platform

import (
	"sort"
	"sync"

	"github.com/mxkodo/pubcast/api/schemas"
)

// Registry maps target names to adapter factories. A dispatch builds a
// fresh adapter per target per run; nothing here is ever shared between
// concurrent sessions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to a target name, replacing any previous
// binding.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds a fresh adapter for the named target.
func (r *Registry) New(name string, deps Deps) (Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, schemas.Faultf(schemas.KindAdapterNotFound, "platform.registry", "no adapter registered for target %q", name)
	}
	return f(deps), nil
}

// Names returns the registered target names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every built-in adapter bound to
// its target name.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("heavennet", NewHeavenNet)
	r.Register("deliherutown", NewDeliheruTown)
	r.Register("fuzokujapan", NewFuzokuJapan)
	return r
}
