// Package idempotency caches attempt outcomes so retried requests for the
// same (event, kind) short-circuit instead of re-running producer calls.
//
// The cache is advisory. The artifact store's compare-and-set remains the
// source of truth; a cache miss or a disabled cache only costs a redundant
// lookup, never a duplicate artifact.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"taxbridge/internal/platform/redis"
	"taxbridge/pkg/domain"
)

const keyPrefix = "taxbridge:attempt:"

// CachedOutcome is the minimal record of a finished attempt.
type CachedOutcome struct {
	Status      string    `json:"status"`
	Producer    string    `json:"producer,omitempty"`
	ExternalRef string    `json:"external_ref,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}

// Cache stores attempt outcomes in redis. A nil client disables the cache;
// every method becomes a no-op miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache with the given outcome TTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached outcome for the key, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*CachedOutcome, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(event, kind)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency cache get: %w", err)
	}
	var outcome CachedOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		// A corrupt entry is treated as a miss; the next Set repairs it.
		return nil, nil
	}
	return &outcome, nil
}

// Set records an attempt outcome for the TTL window.
func (c *Cache) Set(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind, outcome CachedOutcome) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("idempotency cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(event, kind), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached outcome. Called on void and repair so the next
// attempt re-evaluates from the ledger.
func (c *Cache) Invalidate(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(event, kind)).Err(); err != nil {
		return fmt.Errorf("idempotency cache invalidate: %w", err)
	}
	return nil
}

func cacheKey(event domain.EventRef, kind domain.ArtifactKind) string {
	sum := sha256.Sum256([]byte(event.String() + "|" + string(kind)))
	return keyPrefix + hex.EncodeToString(sum[:])
}
