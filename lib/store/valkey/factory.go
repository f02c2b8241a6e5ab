package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/formguard/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

var (
	ErrNoURL         = errors.New("valkey.Config: no URL defined")
	ErrBadURL        = errors.New("valkey.Config: URL is invalid")
	ErrBadMaxRetries = errors.New("valkey.Config: max_retries must be positive")
)

const defaultMaxRetries = 16

func init() {
	store.Register("valkey", Factory{})
}

// Factory opens connections to a valkey server described by Config.
type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	opts, err := valkey.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	rdb := valkey.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey instance: %w", err)
	}

	go func() {
		<-ctx.Done()
		rdb.Close()
	}()

	return &Store{
		rdb:        rdb,
		maxRetries: config.retries(),
	}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

func parse(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

// Config is the valkey storage backend configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string `json:"url"`

	// MaxRetries bounds how often a comment append is retried when another
	// instance wrote the same thread concurrently. Defaults to 16.
	MaxRetries int `json:"max_retries,omitempty"`
}

func (c Config) retries() int {
	if c.MaxRetries == 0 {
		return defaultMaxRetries
	}
	return c.MaxRetries
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	} else if _, err := valkey.ParseURL(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBadURL, err))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, ErrBadMaxRetries)
	}

	if len(errs) != 0 {
		return fmt.Errorf("valkey.Config: invalid config: %w", errors.Join(errs...))
	}

	return nil
}
