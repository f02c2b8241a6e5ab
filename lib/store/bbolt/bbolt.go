package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var ErrNotExists = errors.New("bbolt: value does not exist in store")

var (
	dataKey   = []byte("data")
	expiryKey = []byte("expiry")
)

// Store keeps comment threads in a single bbolt[1] database file.
//
// Every thread gets its own bucket holding the thread JSON under "data" and
// its expiry as a time.RFC3339Nano timestamp under "expiry", so the cleanup
// sweep only reads timestamps. bbolt allows one writing transaction at a
// time, which is what makes Update atomic.
//
// The database file is locked by one process. When several formguard
// instances share comments, use the valkey storage backend.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb      *bbolt.DB
	interval time.Duration
}

// readItem returns the value held in bkt and whether it is still live.
// The returned slice is only valid for the life of the transaction.
func readItem(bkt *bbolt.Bucket, key string, now time.Time) ([]byte, bool, error) {
	expiryStr := bkt.Get(expiryKey)
	if expiryStr == nil {
		return nil, false, fmt.Errorf("[unexpected] %w: %q (expiry is nil)", store.ErrNotFound, key)
	}

	expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
	if err != nil {
		return nil, false, fmt.Errorf("[unexpected] %w: %w", store.ErrCantDecode, err)
	}

	if now.After(expiry) {
		return nil, false, nil
	}

	data := bkt.Get(dataKey)
	if data == nil {
		return nil, false, fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
	}

	return data, true, nil
}

func writeItem(tx *bbolt.Tx, key string, value []byte, expires time.Time) error {
	bkt, err := tx.CreateBucketIfNotExists([]byte(key))
	if err != nil {
		return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
	}

	if err := bkt.Put(expiryKey, []byte(expires.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
	}

	if err := bkt.Put(dataKey, value); err != nil {
		return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
	}

	return nil
}

// Delete a key from the datastore. If the key does not exist, return an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", ErrNotExists, key)
		}

		return tx.DeleteBucket([]byte(key))
	})
}

// Get a value from the datastore. Expired values are deleted in the
// background and reported as missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(key))
		if bkt == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		data, live, err := readItem(bkt, key, time.Now())
		if err != nil {
			return err
		}

		if !live {
			go s.Delete(context.Background(), key)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		result = append([]byte(nil), data...)
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Set a value into the store with a given expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return writeItem(tx, key, value, expires)
	})
}

// Update reads and rewrites key inside one writing transaction.
func (s *Store) Update(ctx context.Context, key string, expiry time.Duration, fn store.UpdateFunc) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		now := time.Now()

		var current []byte
		if bkt := tx.Bucket([]byte(key)); bkt != nil {
			data, live, err := readItem(bkt, key, now)
			if err != nil {
				return err
			}
			if live {
				current = append([]byte(nil), data...)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		return writeItem(tx, key, next, now.Add(expiry))
	})
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		var expired [][]byte

		if err := tx.ForEach(func(key []byte, bkt *bbolt.Bucket) error {
			if bkt.Get(expiryKey) == nil {
				slog.Warn("while running cleanup, expiry is not set somehow, file a bug?", "key", string(key))
				return nil
			}

			_, live, err := readItem(bkt, string(key), now)
			if err != nil {
				return fmt.Errorf("in bucket %q: %w", string(key), err)
			}

			if !live {
				expired = append(expired, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		for _, key := range expired {
			if err := tx.DeleteBucket(key); err != nil {
				return fmt.Errorf("can't delete expired bucket %q: %w", string(key), err)
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.bdb.Close(); err != nil {
				slog.Error("error closing bbolt database", "err", err)
			}
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
