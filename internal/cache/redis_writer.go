package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// TTL constants
const (
	TodaysEventsListTTL = 24 * time.Hour
	ActiveEventTTL      = 6 * time.Hour
	PromotedEventTTL    = 24 * time.Hour
)

// RedisWriter handles the hot-path event status cache. The durable
// record stays the source of truth; the cache only spares the API a
// file read per status poll.
type RedisWriter struct {
	client *redis.Client
}

// NewRedisWriter creates a new Redis writer
func NewRedisWriter(client *redis.Client) *RedisWriter {
	return &RedisWriter{
		client: client,
	}
}

// WriteEventStatus stores the event's status card
func (w *RedisWriter) WriteEventStatus(ctx context.Context, status *models.EventStatus) error {
	key := fmt.Sprintf("event:%s:summary", status.EventID)

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling status for event %s: %w", status.EventID, err)
	}

	ttl := ActiveEventTTL
	if status.State == models.StatePromoted {
		ttl = PromotedEventTTL
	}
	return w.client.Set(ctx, key, data, ttl).Err()
}

// ReadEventStatus retrieves an event's status card. Returns redis.Nil
// on a cache miss; callers fall back to the durable record.
func (w *RedisWriter) ReadEventStatus(ctx context.Context, eventID string) (*models.EventStatus, error) {
	key := fmt.Sprintf("event:%s:summary", eventID)

	data, err := w.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var status models.EventStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("unmarshaling status for event %s: %w", eventID, err)
	}
	return &status, nil
}

// WriteTodaysEvents stores the list of tracked event IDs for a date
func (w *RedisWriter) WriteTodaysEvents(ctx context.Context, sport, date string, eventIDs []string) error {
	key := fmt.Sprintf("events:today:%s:%s", sport, date)

	values := make([]interface{}, len(eventIDs))
	for i, id := range eventIDs {
		values[i] = id
	}

	pipe := w.client.Pipeline()
	pipe.Del(ctx, key) // Clear old list
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
	}
	pipe.Expire(ctx, key, TodaysEventsListTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// ReadTodaysEvents retrieves the tracked event IDs for a date
func (w *RedisWriter) ReadTodaysEvents(ctx context.Context, sport, date string) ([]string, error) {
	key := fmt.Sprintf("events:today:%s:%s", sport, date)

	return w.client.LRange(ctx, key, 0, -1).Result()
}
