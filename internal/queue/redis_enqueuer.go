package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisEnqueuer publishes payloads to a Redis stream.
type RedisEnqueuer struct {
	client *redis.Client
	stream string
}

// NewRedisEnqueuer creates a RedisEnqueuer writing to stream.
func NewRedisEnqueuer(client *redis.Client, stream string) *RedisEnqueuer {
	return &RedisEnqueuer{client: client, stream: stream}
}

// Enqueue adds the payload to the stream using XADD and returns the stream
// entry ID.
func (e *RedisEnqueuer) Enqueue(ctx context.Context, msg *Message) (string, error) {
	data, err := msg.Encode()
	if err != nil {
		return "", err
	}

	entryID, err := e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream %s: %w", e.stream, err)
	}

	MessagesEnqueuedTotal.Inc()

	return entryID, nil
}
