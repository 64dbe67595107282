package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBus publishes events onto a Redis Stream so that out-of-process
// reporting and notification consumers can read them with XREADGROUP.
type RedisBus struct {
	client *redis.Client
	stream string
}

// NewRedisBus connects to Redis using a URL (redis://host:port/db) and
// publishes onto the named stream.
func NewRedisBus(ctx context.Context, url, stream string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBus{client: client, stream: stream}, nil
}

// Publish appends the event to the stream with XADD.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"id":        evt.ID,
			"type":      string(evt.Type),
			"payload":   string(evt.Payload),
			"timestamp": evt.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event %s to stream %s: %w", evt.ID, b.stream, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
