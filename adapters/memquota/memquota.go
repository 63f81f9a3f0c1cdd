// Package memquota provides an in-process QuotaStore backed by a map.
// Suitable for single-instance deployments and tests; multi-instance
// deployments should use the redisquota adapter so every instance sees
// the same windows.
package memquota

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-gatekeeper"
)

type entry struct {
	window    *auth.QuotaWindow
	expiresAt time.Time
}

// Store is a mutex-guarded map of quota windows with TTL expiry.
type Store struct {
	mu      sync.Mutex
	items   map[string]entry
	nowFunc func() time.Time

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// Option customizes Store behavior.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

// WithJanitor starts a background sweep that drops expired entries on the
// given interval. Close stops it.
func WithJanitor(interval time.Duration) Option {
	return func(s *Store) {
		if interval <= 0 {
			return
		}
		s.janitorStop = make(chan struct{})
		go s.janitor(interval)
	}
}

// New builds an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		items:   make(map[string]entry),
		nowFunc: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the stored window for key, or (nil, nil) when the key is
// absent or its TTL has lapsed.
func (s *Store) Get(_ context.Context, key string) (*auth.QuotaWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, nil
	}

	if s.nowFunc().After(item.expiresAt) {
		delete(s.items, key)
		return nil, nil
	}

	// Copy out so callers can mutate without holding the lock.
	window := &auth.QuotaWindow{
		Key:        item.window.Key,
		Timestamps: append([]time.Time(nil), item.window.Timestamps...),
	}

	return window, nil
}

// Put stores the window under key for the given TTL.
func (s *Store) Put(_ context.Context, key string, window *auth.QuotaWindow, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = entry{
		window: &auth.QuotaWindow{
			Key:        window.Key,
			Timestamps: append([]time.Time(nil), window.Timestamps...),
		},
		expiresAt: s.nowFunc().Add(ttl),
	}

	return nil
}

// Delete removes the window under key. Deleting an absent key is not an
// error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)

	return nil
}

// Len reports the number of live entries, counting expired ones not yet
// swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// Close stops the janitor when one is running.
func (s *Store) Close() {
	if s.janitorStop == nil {
		return
	}
	s.janitorOnce.Do(func() {
		close(s.janitorStop)
	})
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items {
		if now.After(item.expiresAt) {
			delete(s.items, key)
		}
	}
}

var _ auth.QuotaStore = (*Store)(nil)
