package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownBackend is returned when no backend is registered under a name.
var ErrUnknownBackend = errors.New("store: unknown backend")

var (
	backends    = map[string]Factory{}
	backendLock sync.RWMutex
)

// Factory validates backend parameters from the config file and opens the
// backend with them.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

// Register makes a backend available under name. It is called from the
// init functions of backend packages.
func Register(name string, impl Factory) {
	backendLock.Lock()
	defer backendLock.Unlock()

	backends[name] = impl
}

// Get returns the factory of the backend called name.
func Get(name string) (Factory, bool) {
	backendLock.RLock()
	defer backendLock.RUnlock()

	f, ok := backends[name]
	return f, ok
}

// Methods lists the registered backend names in order.
func Methods() []string {
	backendLock.RLock()
	defer backendLock.RUnlock()

	result := make([]string, 0, len(backends))
	for name := range backends {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// Build opens the backend called name with its parameters. The context
// bounds the lifetime of the backend's background work.
func Build(ctx context.Context, name string, params json.RawMessage) (Interface, error) {
	f, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known backends: %v)", ErrUnknownBackend, name, Methods())
	}

	result, err := f.Build(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("store: can't open %s backend: %w", name, err)
	}

	return result, nil
}
