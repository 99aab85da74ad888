package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"skein.org/internal/config"
)

// Factory builds a Manager backend from resolved configuration.
type Factory func(cfg *config.Config) (Manager, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under the given name. Backends call it
// from init, mirroring database/sql driver registration; duplicate or empty
// names panic because they are programmer errors.
func Register(name string, factory Factory) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || factory == nil {
		panic("auth: Register requires a name and a factory")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("auth: Register called twice for backend " + name)
	}
	registry[name] = factory
}

// New instantiates the named backend. Unknown names and factories that
// produce nothing are composition-time failures; the process must not start
// serving on them.
func New(name string, cfg *config.Config) (Manager, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown auth manager %q (registered: %s)",
			ErrNotImplemented, name, strings.Join(Backends(), ", "))
	}
	m, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("auth manager %q: %w", name, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: auth manager %q produced no instance", ErrNotImplemented, name)
	}
	return m, nil
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
