// Package publisher pushes snapshot and fact updates onto Redis streams
// for the API process to fan out.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// StreamPublisher publishes telemetry updates to Redis streams
type StreamPublisher struct {
	client         *redis.Client
	snapshotStream string
	factStream     string
	maxLen         int64
}

// NewStreamPublisher creates a publisher for the given stream keys.
// Streams are trimmed approximately to maxLen entries on every add.
func NewStreamPublisher(client *redis.Client, snapshotStream, factStream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client:         client,
		snapshotStream: snapshotStream,
		factStream:     factStream,
		maxLen:         maxLen,
	}
}

// PublishSnapshot publishes one appended snapshot to the snapshot stream
func (p *StreamPublisher) PublishSnapshot(ctx context.Context, update *models.SnapshotUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshaling snapshot update: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.snapshotStream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":     string(data),
			"event_id": update.EventID,
			"type":     models.MessageTypeSnapshot,
		},
	}).Err()
}

// PublishFact publishes one forwarded fact to the fact stream
func (p *StreamPublisher) PublishFact(ctx context.Context, fact models.Fact) error {
	data, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshaling fact: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.factStream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":     string(data),
			"event_id": fact.EventID,
			"type":     models.MessageTypeFact,
		},
	}).Err()
}
