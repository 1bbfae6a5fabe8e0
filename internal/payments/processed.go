package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedTracker remembers webhook event ids that have already been
// handled, so exact redeliveries short-circuit.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) error
}

// RedisProcessedTracker tracks processed events in redis with a TTL.
type RedisProcessedTracker struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ProcessedTracker = (*RedisProcessedTracker)(nil)

// NewRedisProcessedTracker builds a tracker. Returns nil when no client
// is configured; a nil tracker disables dedup without disabling the
// handler.
func NewRedisProcessedTracker(client *redis.Client, ttl time.Duration) *RedisProcessedTracker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisProcessedTracker{client: client, ttl: ttl}
}

func processedKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:processed:%s:%s", provider, eventID)
}

// AlreadyProcessed implements ProcessedTracker.
func (t *RedisProcessedTracker) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := t.client.Exists(ctx, processedKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("payments: processed lookup: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements ProcessedTracker.
func (t *RedisProcessedTracker) MarkProcessed(ctx context.Context, provider, eventID string) error {
	if err := t.client.Set(ctx, processedKey(provider, eventID), "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("payments: processed mark: %w", err)
	}
	return nil
}
