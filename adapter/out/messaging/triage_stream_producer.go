// Package messaging publishes triage events on Redis Streams.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	StreamEmailTriaged = "triage:email.triaged"

	defaultMaxLen = 50000
)

// RedisProducer implements out.EventPublisher.
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, maxLen: defaultMaxLen}
}

func (p *RedisProducer) PublishTriaged(ctx context.Context, evt *domain.TriagedEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	return p.publish(ctx, StreamEmailTriaged, evt)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

var _ out.EventPublisher = (*RedisProducer)(nil)
