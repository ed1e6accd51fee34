// Package redis provides a Redis-backed key/value store. Keys are namespaced
// with a configurable prefix so several deployments can share one database.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"signout/pkg/domain"
)

// Compile-time contract assertion ensuring redis.Store adheres to the domain persistence interface.
var _ domain.KeyValueStore = (*Store)(nil)

// DefaultPrefix namespaces every stored key.
const DefaultPrefix = "signout:"

// Options configures NewStore.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store persists values as plain Redis strings.
type Store struct {
	c      *redis.Client
	prefix string
}

// NewStore dials Redis and verifies the connection with PING.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStoreWithClient(c, opts.Prefix), nil
}

// NewStoreWithClient wraps an existing client. An empty prefix selects DefaultPrefix.
func NewStoreWithClient(c *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{c: c, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

// GetItem returns the value stored under key.
func (s *Store) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.c.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// SetItem stores value under key without expiry.
func (s *Store) SetItem(ctx context.Context, key string, value []byte) error {
	if err := s.c.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.c.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// ScanKeys lists stored keys matching pattern, with the prefix stripped.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.c.Scan(ctx, cursor, s.key(pattern), 200).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, k[len(s.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "redis" }

// Close closes the client.
func (s *Store) Close() error { return s.c.Close() }
