package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis I/O failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned by Get when the principal has no active entry.
var ErrNotFound = errors.New("session not found")

// Store is a Redis-backed map from principal to its active renewal credential.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store] backed by the given Redis client. prefix sets
// the key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "fa"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(principal string) string {
	return s.prefix + ":renewal:" + principal
}

// Put stores token as the active renewal credential for principal, replacing
// any previous value, and sets its expiry to ttl.
//
//	Performance: 1 Redis SET.
func (s *Store) Put(ctx context.Context, principal, token string, ttl time.Duration) error {
	if principal == "" {
		return errors.New("principal is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be > 0")
	}

	if err := s.redis.Set(ctx, s.key(principal), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the active renewal credential for principal or [ErrNotFound].
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, principal string) (string, error) {
	token, err := s.redis.Get(ctx, s.key(principal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// Delete removes the entry for principal. Deleting a missing entry is not an
// error.
//
//	Performance: 1 Redis DEL.
func (s *Store) Delete(ctx context.Context, principal string) error {
	if err := s.redis.Del(ctx, s.key(principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of the entry for principal, or
// [ErrNotFound] when there is none.
func (s *Store) TTL(ctx context.Context, principal string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(principal)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// go-redis passes through -2 (missing key) and -1 (no expiry) unscaled.
	switch {
	case ttl == -2:
		return 0, ErrNotFound
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
