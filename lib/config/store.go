package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/formguard/lib/store"
	_ "github.com/TecharoHQ/formguard/lib/store/all"
)

var (
	ErrNoStoreBackend = errors.New("config.Store: no backend defined")

	// ErrUnknownStoreBackend is the store package's error so callers can
	// match it whether it came from validation or from opening the store.
	ErrUnknownStoreBackend = store.ErrUnknownBackend
)

// Store selects where the comment board keeps its threads. Parameters are
// handed to the backend as they are and validated by it.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s Store) Valid() error {
	if s.Backend == "" {
		return ErrNoStoreBackend
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return fmt.Errorf("%w: %q (known backends: %v)", ErrUnknownStoreBackend, s.Backend, store.Methods())
	}

	if err := fac.Valid(s.Parameters); err != nil {
		return fmt.Errorf("config.Store: %s parameters: %w", s.Backend, err)
	}

	return nil
}

// Open validates the section and opens the backend it names. The context
// bounds the backend's background work.
func (s Store) Open(ctx context.Context) (store.Interface, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}

	return store.Build(ctx, s.Backend, s.Parameters)
}
