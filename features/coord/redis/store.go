// Package redis provides a Redis-backed implementation of coord.Store.
//
// Every method maps to a single Redis command (the list drain uses one
// MULTI/EXEC transaction), so cooperating processes never observe partial
// protocol state. Callers build the Redis client and pass it in; the store
// does not own the connection lifecycle.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/clue/health"

	"github.com/agentwarden/warden/runtime/coord"
)

type (
	// Options configures the Redis store.
	Options struct {
		// Client is the Redis connection. Required.
		Client *redis.Client
		// KeyPrefix namespaces every key, so several deployments can share
		// one Redis. Optional.
		KeyPrefix string
		// OperationTimeout bounds individual commands. Zero means no
		// additional timeout beyond the caller's context.
		OperationTimeout time.Duration
	}

	// Store implements coord.Store on Redis. Safe for concurrent use.
	Store struct {
		client  *redis.Client
		prefix  string
		timeout time.Duration
	}
)

const storeClientName = "coord-redis"

// New constructs a Store backed by the provided Redis connection.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Store{
		client:  opts.Client,
		prefix:  opts.KeyPrefix,
		timeout: opts.OperationTimeout,
	}, nil
}

// Compile-time checks.
var (
	_ coord.Store   = (*Store)(nil)
	_ health.Pinger = (*Store)(nil)
)

// Name implements health.Pinger.
func (s *Store) Name() string {
	return storeClientName
}

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get implements coord.Store.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", coord.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set implements coord.Store.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete implements coord.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// SetAdd implements coord.Store.
func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.SAdd(ctx, s.prefix+key, member).Err(); err != nil {
		return fmt.Errorf("redis sadd %q: %w", key, err)
	}
	return nil
}

// SetRemove implements coord.Store.
func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.SRem(ctx, s.prefix+key, member).Err(); err != nil {
		return fmt.Errorf("redis srem %q: %w", key, err)
	}
	return nil
}

// SetMembers implements coord.Store.
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	members, err := s.client.SMembers(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %q: %w", key, err)
	}
	return members, nil
}

// ListPush implements coord.Store.
func (s *Store) ListPush(ctx context.Context, key, value string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.RPush(ctx, s.prefix+key, value).Err(); err != nil {
		return fmt.Errorf("redis rpush %q: %w", key, err)
	}
	return nil
}

// ListPopAll implements coord.Store. The range-and-delete pair runs in one
// MULTI/EXEC transaction so concurrent pushers never lose entries to a
// partial drain.
func (s *Store) ListPopAll(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	var entries *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		entries = pipe.LRange(ctx, s.prefix+key, 0, -1)
		pipe.Del(ctx, s.prefix+key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis drain %q: %w", key, err)
	}
	return entries.Val(), nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}
