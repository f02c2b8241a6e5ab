package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard/decaymap"
	"github.com/TecharoHQ/formguard/lib/store"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var ErrBadCleanupInterval = errors.New("memory: cleanup_interval must be positive")

const defaultCleanupInterval = 5 * time.Minute

type factory struct{}

func (factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	return newStore(ctx, config.interval()), nil
}

func (factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

func init() {
	store.Register("memory", factory{})
}

// Config is the optional configuration of the in-memory store.
type Config struct {
	// CleanupInterval is how often expired threads are reclaimed.
	CleanupInterval *metav1.Duration `json:"cleanup_interval,omitempty"`
}

func (c Config) interval() time.Duration {
	if c.CleanupInterval == nil {
		return defaultCleanupInterval
	}
	return c.CleanupInterval.Duration
}

func (c Config) Valid() error {
	if c.CleanupInterval != nil && c.CleanupInterval.Duration <= 0 {
		return ErrBadCleanupInterval
	}
	return nil
}

func parse(data json.RawMessage) (Config, error) {
	var config Config
	if len(data) != 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
		}
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

type impl struct {
	store *decaymap.Impl[string, []byte]
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.store.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	i.store.Set(key, value, expiry)
	return nil
}

func (i *impl) Update(_ context.Context, key string, expiry time.Duration, fn store.UpdateFunc) error {
	return i.store.Update(key, expiry, func(current []byte, ok bool) ([]byte, error) {
		if !ok {
			current = nil
		}
		return fn(current)
	})
}

func (i *impl) cleanupThread(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.store.Cleanup()
		}
	}
}

// New creates a simple in-memory store. Comments are lost on restart and
// are not shared between formguard instances.
func New(ctx context.Context) store.Interface {
	return newStore(ctx, defaultCleanupInterval)
}

func newStore(ctx context.Context, interval time.Duration) store.Interface {
	result := &impl{
		store: decaymap.New[string, []byte](),
	}

	go result.cleanupThread(ctx, interval)

	return result
}
