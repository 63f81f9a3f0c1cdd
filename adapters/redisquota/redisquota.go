// Package redisquota provides a QuotaStore on Redis, the shared backend
// for multi-instance deployments. Windows are stored as JSON values with
// Redis-side TTL so stale keys expire without a sweeper.
package redisquota

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-gatekeeper"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces quota windows inside a shared Redis database.
const keyPrefix = "quota:"

// Store persists quota windows in Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option customizes Store behavior.
type Option func(*Store)

// WithPrefix overrides the default "quota:" key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps a Redis client. The client's lifecycle belongs to the caller.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: keyPrefix,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get loads the window for key, (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*auth.QuotaWindow, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "redis quota read failed")
	}

	window := &auth.QuotaWindow{}
	if err := json.Unmarshal(raw, window); err != nil {
		// A corrupt value is unrecoverable; treat it as absent so the
		// window restarts instead of poisoning every request.
		_ = s.client.Del(ctx, s.prefix+key).Err()
		return nil, nil
	}

	return window, nil
}

// Put stores the window under key with the given TTL.
func (s *Store) Put(ctx context.Context, key string, window *auth.QuotaWindow, ttl time.Duration) error {
	raw, err := json.Marshal(window)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode quota window")
	}

	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "redis quota write failed")
	}

	return nil
}

// Delete removes the window under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "redis quota delete failed")
	}

	return nil
}

var _ auth.QuotaStore = (*Store)(nil)
