package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
	"go.etcd.io/bbolt"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var (
	ErrMissingPath        = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath    = errors.New("bbolt: can't write to path")
	ErrBadCleanupInterval = errors.New("bbolt: cleanup_interval must be positive")
	ErrBadOpenTimeout     = errors.New("bbolt: open_timeout must not be negative")
)

const defaultCleanupInterval = 5 * time.Minute

func init() {
	store.Register("bbolt", Factory{})
}

// Factory opens the thread database described by Config.
type Factory struct{}

// Build opens the database and starts the expiry sweep. The database is
// closed when ctx is done.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: config.timeout()})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	result := &Store{
		bdb:      bdb,
		interval: config.interval(),
	}

	go result.cleanupThread(ctx)

	return result, nil
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

// Config is the bbolt storage backend configuration.
type Config struct {
	// Path of the database file. Its folder must be writable.
	Path string `json:"path"`

	// CleanupInterval is how often expired threads are removed. Defaults to
	// five minutes.
	CleanupInterval *metav1.Duration `json:"cleanup_interval,omitempty"`

	// OpenTimeout bounds the wait for another process to release the file
	// lock. Zero waits forever.
	OpenTimeout *metav1.Duration `json:"open_timeout,omitempty"`
}

func (c Config) interval() time.Duration {
	if c.CleanupInterval == nil {
		return defaultCleanupInterval
	}
	return c.CleanupInterval.Duration
}

func (c Config) timeout() time.Duration {
	if c.OpenTimeout == nil {
		return 0
	}
	return c.OpenTimeout.Duration
}

// Valid checks the configuration, including that the database folder is
// writable.
func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	} else if err := checkWritable(filepath.Dir(c.Path)); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrCantWriteToPath, err))
	}

	if c.CleanupInterval != nil && c.CleanupInterval.Duration <= 0 {
		errs = append(errs, ErrBadCleanupInterval)
	}

	if c.OpenTimeout != nil && c.OpenTimeout.Duration < 0 {
		errs = append(errs, ErrBadOpenTimeout)
	}

	return errors.Join(errs...)
}

func checkWritable(dir string) error {
	fout, err := os.CreateTemp(dir, ".formguard-writable-*")
	if err != nil {
		return err
	}

	name := fout.Name()
	fout.Close()
	return os.Remove(name)
}
