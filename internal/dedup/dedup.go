package dedup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Guard suppresses repeat fact deliveries using Redis
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuard creates a guard. A fact stays marked for the TTL, which
// should comfortably outlast one game.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{
		client: client,
		ttl:    ttl,
	}
}

// ShouldForward returns true if this fact has not gone out recently,
// marking it seen in the same call.
func (g *Guard) ShouldForward(ctx context.Context, fact models.Fact) (bool, error) {
	key := g.factKey(fact)

	exists, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	if exists > 0 {
		// Already forwarded recently
		return false, nil
	}

	if err := g.client.Set(ctx, key, "1", g.ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return true, nil
}

// factKey builds a deterministic key for a fact's idempotence tuple.
// Key format: fact:dedup:{event_id}:{subject_hash}:{class}:{threshold}
func (g *Guard) factKey(fact models.Fact) string {
	// Subjects are display names with spaces; hash them
	hash := sha256.Sum256([]byte(fact.Subject))
	subjectHash := fmt.Sprintf("%x", hash[:8])

	return fmt.Sprintf("fact:dedup:%s:%s:%s:%d", fact.EventID, subjectHash, fact.Class, fact.Threshold)
}

// Clear removes a dedup entry (for testing)
func (g *Guard) Clear(ctx context.Context, fact models.Fact) error {
	return g.client.Del(ctx, g.factKey(fact)).Err()
}
