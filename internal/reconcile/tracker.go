package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedTracker remembers gateway payment ids that have already been
// reconciled, so webhook redelivery and live-feed replay after a reconnect
// become cheap no-ops.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, gatewayPaymentID string) (bool, error)
	MarkProcessed(ctx context.Context, gatewayPaymentID string) error
}

// processedTTL bounds tracker growth; a replay older than this still dedups
// against the client record itself.
const processedTTL = 30 * 24 * time.Hour

// RedisTracker is a ProcessedTracker backed by Redis, surviving restarts.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker creates a Redis-backed tracker; nil client yields nil.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	if client == nil {
		return nil
	}
	return &RedisTracker{client: client}
}

func trackerKey(gatewayPaymentID string) string {
	return "reconciled:payment:" + gatewayPaymentID
}

func (t *RedisTracker) AlreadyProcessed(ctx context.Context, gatewayPaymentID string) (bool, error) {
	if gatewayPaymentID == "" {
		return false, nil
	}
	n, err := t.client.Exists(ctx, trackerKey(gatewayPaymentID)).Result()
	if err != nil {
		return false, fmt.Errorf("reconcile: processed lookup: %w", err)
	}
	return n > 0, nil
}

func (t *RedisTracker) MarkProcessed(ctx context.Context, gatewayPaymentID string) error {
	if gatewayPaymentID == "" {
		return nil
	}
	if err := t.client.Set(ctx, trackerKey(gatewayPaymentID), "1", processedTTL).Err(); err != nil {
		return fmt.Errorf("reconcile: mark processed: %w", err)
	}
	return nil
}

// MemoryTracker is a ProcessedTracker for tests and Redis-less deployments.
type MemoryTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{seen: make(map[string]struct{})}
}

func (t *MemoryTracker) AlreadyProcessed(ctx context.Context, gatewayPaymentID string) (bool, error) {
	if gatewayPaymentID == "" {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[gatewayPaymentID]
	return ok, nil
}

func (t *MemoryTracker) MarkProcessed(ctx context.Context, gatewayPaymentID string) error {
	if gatewayPaymentID == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[gatewayPaymentID] = struct{}{}
	return nil
}
