// Package cache provides a generic in-memory TTL cache.
//
// Entries are never evicted in the background. Staleness is checked on
// read, and a stale or missing entry triggers a recompute through the
// caller-supplied function. Concurrent lookups for the same key are
// coalesced so the compute function runs at most once per key at a time.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	value      T
	computedAt time.Time
}

// Store is a TTL cache keyed by string.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   func() time.Time
	clone func(T) T
	group singleflight.Group
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClock overrides the time source. Used in tests to simulate
// expiry without sleeping.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) {
		s.now = now
	}
}

// WithClone sets a copy function applied to values on cache hits, so
// callers cannot mutate the cached entry through the returned value.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(s *Store[T]) {
		s.clone = clone
	}
}

// New creates a Store whose entries are fresh for ttl after compute.
func New[T any](ttl time.Duration, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCompute returns the cached value for key if it is still fresh.
// Otherwise it runs compute; a (value, true) result is stored and
// returned, a (_, false) result is returned without being stored, so
// failed lookups are retried on the next call.
func (s *Store[T]) GetOrCompute(key string, compute func() (T, bool)) (T, bool) {
	if v, ok := s.lookup(key); ok {
		return v, true
	}

	type result struct {
		value T
		ok    bool
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		// Another caller may have filled the entry while we waited
		// on the flight group.
		if v, ok := s.lookup(key); ok {
			return result{value: v, ok: true}, nil
		}

		value, ok := compute()
		if ok {
			s.mu.Lock()
			s.items[key] = entry[T]{value: value, computedAt: s.now()}
			s.mu.Unlock()
		}
		return result{value: value, ok: ok}, nil
	})

	res := v.(result)
	if res.ok && s.clone != nil {
		return s.clone(res.value), true
	}
	return res.value, res.ok
}

func (s *Store[T]) lookup(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	now := s.now()
	s.mu.RUnlock()

	if !ok || now.Sub(e.computedAt) >= s.ttl {
		var zero T
		return zero, false
	}
	if s.clone != nil {
		return s.clone(e.value), true
	}
	return e.value, true
}

// Invalidate removes the entry for key, forcing the next read to
// recompute.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Purge removes entries that are past their TTL. The cache works
// correctly without purging; this only bounds memory for keys that are
// never read again.
func (s *Store[T]) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if now.Sub(e.computedAt) >= s.ttl {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, fresh or stale.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
