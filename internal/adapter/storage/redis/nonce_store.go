package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using SET NX, scoped per provider.
type NonceStore struct {
	client *goredis.Client
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: keyPrefix + "nonce:",
	}
}

// CheckAndSet records nonce under scope. Returns false if it was already seen.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	return setNX(ctx, s.client, s.prefix+scope+":"+nonce, ttl)
}

// ThrottleStore implements ports.ThrottleStore. A key is held for ttl by the
// first caller; everyone else is refused until it expires.
type ThrottleStore struct {
	client *goredis.Client
	prefix string
}

// NewThrottleStore creates a new Redis-backed throttle.
func NewThrottleStore(client *goredis.Client) *ThrottleStore {
	return &ThrottleStore{
		client: client,
		prefix: keyPrefix + "throttle:",
	}
}

// Acquire reports whether the caller now holds key.
func (s *ThrottleStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return setNX(ctx, s.client, s.prefix+key, ttl)
}

func setNX(ctx context.Context, client *goredis.Client, key string, ttl time.Duration) (bool, error) {
	result, err := client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis set nx %s: %w", key, err)
	}
	return result == "OK", nil
}
