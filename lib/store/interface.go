package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard/internal"
)

var (
	// ErrNotFound is returned when the store implementation cannot find the value
	// for a given key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode is returned when a store adaptor cannot decode the store format
	// to a value used by the code.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode is returned when a store adaptor cannot encode the value into
	// the format that the store uses.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig is returned when a store adaptor's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")

	// ErrConflict is returned when an update kept losing races against
	// other writers of the same key.
	ErrConflict = errors.New("store: too many concurrent updates")
)

// Interface is the key/value storage the comment board keeps threads in. It
// never holds submission tokens. Backends live in memory, on disk or in a
// shared valkey instance.
type Interface interface {
	// Delete removes a value from the store by key.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming that value exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store that expires according to its expiry.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// Update atomically replaces the value of key with what fn returns and
	// resets its expiry. fn gets the current value, or nil when the key is
	// missing or expired. No write from another handle on the same backend is
	// lost in between. Backends may call fn again after losing a race, so fn
	// must not have side effects.
	Update(ctx context.Context, key string, expiry time.Duration, fn UpdateFunc) error
}

// UpdateFunc computes the next value of a key from its current one.
type UpdateFunc func(current []byte) ([]byte, error)

func z[T any]() T { return *new(T) }

// JSON stores values of type T as JSON documents. Keys are prefixed with
// Prefix and, when Hash is set, replaced by their xxhash so that arbitrary
// user input maps to short keys every backend accepts.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
	Hash       bool
}

func (j *JSON[T]) key(key string) string {
	if j.Hash {
		key = internal.FastHash(key)
	}

	return j.Prefix + key
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	key = j.key(key)

	return j.Underlying.Delete(ctx, key)
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	key = j.key(key)

	data, err := j.Underlying.Get(ctx, key)
	if err != nil {
		return z[T](), err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return z[T](), fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	key = j.key(key)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	if err := j.Underlying.Set(ctx, key, data, expiry); err != nil {
		return err
	}

	return nil
}

// Update atomically rewrites the document under key. fn gets the zero value
// of T when there is no document yet.
func (j *JSON[T]) Update(ctx context.Context, key string, expiry time.Duration, fn func(current T) (T, error)) error {
	key = j.key(key)

	return j.Underlying.Update(ctx, key, expiry, func(data []byte) ([]byte, error) {
		var current T
		if data != nil {
			if err := json.Unmarshal(data, &current); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCantDecode, err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}

		result, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCantEncode, err)
		}

		return result, nil
	})
}
