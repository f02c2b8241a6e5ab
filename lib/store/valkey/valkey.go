package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store keeps comment threads in valkey (or any redis-compatible server) so
// several formguard instances can share them. Expiry is handled by the server.
// Updates are optimistic transactions: WATCH the key, read it, and write it
// back in MULTI/EXEC, starting over when another client changed it first.
type Store struct {
	rdb        *valkey.Client
	maxRetries int
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, valkey.Nil):
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, expiry).Err(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, key string, expiry time.Duration, fn store.UpdateFunc) error {
	txf := func(tx *valkey.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, valkey.Nil):
			current = nil
		case err != nil:
			return fmt.Errorf("can't fetch from valkey: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe valkey.Pipeliner) error {
			pipe.Set(ctx, key, next, expiry)
			return nil
		})
		return err
	}

	for range s.maxRetries {
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case errors.Is(err, valkey.TxFailedErr):
			continue
		case err != nil:
			return fmt.Errorf("can't update %q in valkey: %w", key, err)
		default:
			return nil
		}
	}

	return fmt.Errorf("%w: %q after %d attempts", store.ErrConflict, key, s.maxRetries)
}
