package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker locks a key while the first request for it is still being
// processed. It is deliberately not a JSON document so readers can tell it
// apart from a stored response envelope.
const pendingMarker = "pending"

// IdempotencyStore implements usecase.IdempotencyStore using Redis. Keys are
// composite (route, sender, client key) values built by the HTTP layer; the
// store itself treats them as opaque. It is a fast-path replay cache; the
// unique constraint in the ledger's storage remains the correctness backstop.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "replay:",
	}
}

// CheckAndSet returns the stored entry for key when one exists. When none
// exists it claims the key: with the provided response directly, otherwise
// with a pending marker so a concurrent request for the same key observes
// the claim.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	if err == nil {
		return true, existing, nil
	}
	if err != redis.Nil {
		return false, nil, err
	}

	if response != nil {
		if err := s.client.Set(ctx, fullKey, response, ttl).Err(); err != nil {
			return false, nil, err
		}
		return false, nil, nil
	}

	claimed, err := s.client.SetNX(ctx, fullKey, pendingMarker, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !claimed {
		// Lost the claim race; surface whatever the winner wrote.
		existing, err := s.client.Get(ctx, fullKey).Bytes()
		if err != nil && err != redis.Nil {
			return false, nil, err
		}
		return true, existing, nil
	}

	return false, nil, nil
}

// Update replaces the entry for key with the final response.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}
