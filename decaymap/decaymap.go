// Package decaymap is a mutex-guarded map whose entries expire after a
// per-entry lifetime.
package decaymap

import (
	"sync"
	"time"

	"github.com/TecharoHQ/formguard/internal/clock"
)

type entry[V any] struct {
	value  V
	expiry time.Time
}

// Impl is a map of K to V where every value decays after its expiry.
// Expired values are never returned; Cleanup reclaims their memory.
type Impl[K comparable, V any] struct {
	data  map[K]entry[V]
	clock clock.Clock
	lock  sync.RWMutex
}

// New creates a decaymap that reads the wall clock.
func New[K comparable, V any]() *Impl[K, V] {
	return NewWithClock[K, V](clock.Real{})
}

// NewWithClock creates a decaymap that uses clk to decide what expired.
func NewWithClock[K comparable, V any](clk clock.Clock) *Impl[K, V] {
	return &Impl[K, V]{
		data:  map[K]entry[V]{},
		clock: clock.OrReal(clk),
	}
}

func (m *Impl[K, V]) expired(e entry[V]) bool {
	return m.clock.Now().After(e.expiry)
}

// Get returns the value for key if it exists and has not expired.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	e, ok := m.data[key]
	m.lock.RUnlock()

	if !ok || m.expired(e) {
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set puts value under key for ttl.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = entry[V]{
		value:  value,
		expiry: m.clock.Now().Add(ttl),
	}
}

// Update replaces the value under key with what fn returns and resets its
// lifetime to ttl, holding the lock throughout. fn gets the current value and
// whether it is live. When fn fails, the map is left untouched.
func (m *Impl[K, V]) Update(key K, ttl time.Duration, fn func(current V, ok bool) (V, error)) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	e, ok := m.data[key]
	if ok && m.expired(e) {
		ok = false
		e = entry[V]{}
	}

	next, err := fn(e.value, ok)
	if err != nil {
		return err
	}

	m.data[key] = entry[V]{
		value:  next,
		expiry: m.clock.Now().Add(ttl),
	}
	return nil
}

// Delete removes key, reporting whether a live value was removed.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	e, ok := m.data[key]
	if !ok {
		return false
	}

	delete(m.data, key)
	return !m.expired(e)
}

// Cleanup drops every expired entry.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for key, e := range m.data {
		if m.expired(e) {
			delete(m.data, key)
		}
	}
}

// Len returns the number of entries, expired or not.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.data)
}
