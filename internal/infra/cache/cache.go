// Package cache provides a small in-memory TTL store. It backs conversation
// histories and the paid-installments snapshot; a Redis-backed variant could
// replace it behind the same methods.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Store is a concurrency-safe in-memory cache where every entry lives for a
// fixed TTL from its last Set.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	stop  chan struct{}
}

// New creates a Store whose entries expire ttl after being set. A background
// sweeper reclaims expired entries; call Close to stop it.
func New[T any](ttl time.Duration) *Store[T] {
	s := &Store[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Get returns the live value for key, or false when absent or expired.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, restarting its TTL.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Delete drops key if present.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
}

// Len reports how many entries are currently live.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	now := time.Now()
	for _, e := range s.items {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the background sweeper. The store remains usable afterwards;
// expired entries are then only dropped lazily on Get.
func (s *Store[T]) Close() {
	close(s.stop)
}

func (s *Store[T]) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, e := range s.items {
				if now.After(e.expiresAt) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
