// Package consumer reads the tracker's Redis streams and hands each
// decoded update to the hub for WebSocket fan-out.
package consumer

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jasper9/nbastats.fun/internal/config"
	"github.com/jasper9/nbastats.fun/internal/hub"
	"github.com/jasper9/nbastats.fun/internal/metrics"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

const (
	batchSize     = 100
	blockDuration = 1 * time.Second
)

// StreamConsumer consumes snapshot and fact updates from Redis streams
type StreamConsumer struct {
	redis   *redis.Client
	hub     *hub.Hub
	cfg     config.StreamConfig
	metrics *metrics.Metrics
}

// NewStreamConsumer creates a consumer. metrics may be nil.
func NewStreamConsumer(redisClient *redis.Client, h *hub.Hub, cfg config.StreamConfig, m *metrics.Metrics) *StreamConsumer {
	return &StreamConsumer{
		redis:   redisClient,
		hub:     h,
		cfg:     cfg,
		metrics: m,
	}
}

// Start creates the consumer groups and reads both streams until the
// context ends.
func (sc *StreamConsumer) Start(ctx context.Context) {
	streams := []string{sc.cfg.SnapshotStream, sc.cfg.FactStream}
	log.Printf("[consumer] consuming %v as group %s", streams, sc.cfg.ConsumerGroup)

	for _, stream := range streams {
		sc.createConsumerGroup(ctx, stream)
		go sc.consumeStream(ctx, stream)
	}

	<-ctx.Done()
}

// createConsumerGroup creates the group, tolerating one that already
// exists.
func (sc *StreamConsumer) createConsumerGroup(ctx context.Context, stream string) {
	err := sc.redis.XGroupCreateMkStream(ctx, stream, sc.cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		log.Printf("[consumer] creating group for %s: %v", stream, err)
	}
}

func (sc *StreamConsumer) consumeStream(ctx context.Context, stream string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := sc.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    sc.cfg.ConsumerGroup,
				Consumer: sc.cfg.ConsumerID,
				Streams:  []string{stream, ">"},
				Count:    batchSize,
				Block:    blockDuration,
			}).Result()

			if err != nil {
				if err == redis.Nil || ctx.Err() != nil {
					continue
				}
				log.Printf("[consumer] read error on %s: %v", stream, err)
				time.Sleep(1 * time.Second)
				continue
			}

			for _, s := range streams {
				for _, message := range s.Messages {
					sc.processMessage(ctx, s.Stream, message)
				}
			}
		}
	}
}

// processMessage decodes one stream entry and broadcasts it. Malformed
// entries are acked and dropped so they cannot wedge the group.
func (sc *StreamConsumer) processMessage(ctx context.Context, stream string, msg redis.XMessage) {
	defer sc.ackMessage(ctx, stream, msg.ID)

	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		log.Printf("[consumer] malformed entry in %s: %v", stream, msg.Values)
		return
	}
	msgType, _ := msg.Values["type"].(string)

	if sc.metrics != nil {
		sc.metrics.StreamMessages.WithLabelValues(stream).Inc()
	}

	switch msgType {
	case models.MessageTypeSnapshot:
		var update models.SnapshotUpdate
		if err := json.Unmarshal([]byte(dataStr), &update); err != nil {
			log.Printf("[consumer] decoding snapshot from %s: %v", stream, err)
			return
		}
		if sc.metrics != nil && !update.PublishedAt.IsZero() {
			sc.metrics.FanoutLag.Observe(time.Since(update.PublishedAt).Seconds())
		}
		sc.hub.Broadcast(models.StreamUpdate{
			Type:    models.MessageTypeSnapshot,
			EventID: update.EventID,
			Payload: update,
		})

	case models.MessageTypeFact:
		var fact models.Fact
		if err := json.Unmarshal([]byte(dataStr), &fact); err != nil {
			log.Printf("[consumer] decoding fact from %s: %v", stream, err)
			return
		}
		sc.hub.Broadcast(models.StreamUpdate{
			Type:    models.MessageTypeFact,
			EventID: fact.EventID,
			Payload: fact,
		})

	default:
		log.Printf("[consumer] unknown message type %q in %s", msgType, stream)
	}
}

func (sc *StreamConsumer) ackMessage(ctx context.Context, stream, messageID string) {
	if err := sc.redis.XAck(ctx, stream, sc.cfg.ConsumerGroup, messageID).Err(); err != nil {
		log.Printf("[consumer] ack %s in %s: %v", messageID, stream, err)
	}
}
