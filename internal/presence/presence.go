// Package presence tracks per-event viewer heartbeats in Redis. Each
// viewer is a sorted-set member scored with its expiry time; counting
// prunes expired members first, so a viewer who stopped heartbeating
// ages out within the TTL without any background sweeper.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker registers heartbeats and answers viewer counts.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker creates a tracker. ttl is how long one heartbeat keeps a
// viewer counted.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{
		client: client,
		ttl:    ttl,
	}
}

func presenceKey(eventID string) string {
	return fmt.Sprintf("presence:event:%s", eventID)
}

// Heartbeat registers or refreshes one viewer's presence on an event.
func (t *Tracker) Heartbeat(ctx context.Context, eventID, viewerToken string) error {
	key := presenceKey(eventID)
	expiry := float64(time.Now().Add(t.ttl).Unix())

	if err := t.client.ZAdd(ctx, key, redis.Z{Score: expiry, Member: viewerToken}).Err(); err != nil {
		return fmt.Errorf("registering heartbeat for event %s: %w", eventID, err)
	}

	// The whole set dies once everyone has been silent for two TTLs,
	// so abandoned events leave nothing behind.
	if err := t.client.Expire(ctx, key, 2*t.ttl).Err(); err != nil {
		return fmt.Errorf("refreshing presence expiry for event %s: %w", eventID, err)
	}
	return nil
}

// ActiveViewerCount returns how many viewers have a live heartbeat on
// the event right now.
func (t *Tracker) ActiveViewerCount(ctx context.Context, eventID string) (int, error) {
	key := presenceKey(eventID)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := t.client.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return 0, fmt.Errorf("pruning expired viewers for event %s: %w", eventID, err)
	}

	count, err := t.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counting viewers for event %s: %w", eventID, err)
	}
	return int(count), nil
}
