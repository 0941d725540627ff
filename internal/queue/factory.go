package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend bundles the producer side of a queue with its DLQ and builds
// dequeuers on demand, so processes that only enqueue never start workers.
type Backend struct {
	Enqueuer Enqueuer
	DLQ      DeadLetterQueue

	newDequeuer func(exec *Executor) Dequeuer
}

// Dequeuer returns a consumer that runs payloads through exec.
func (b *Backend) Dequeuer(exec *Executor) Dequeuer {
	return b.newDequeuer(exec)
}

// Open builds the backend selected by cfg.Type. rdb is required for the
// redis backend and ignored otherwise.
func Open(ctx context.Context, cfg Config, rdb *redis.Client, log zerolog.Logger) (*Backend, error) {
	cfg = cfg.withDefaults()
	log = log.With().Str("component", "queue").Str("backend", cfg.Type).Logger()

	switch cfg.Type {
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis queue requires a redis client")
		}
		enqueuer := NewRedisEnqueuer(rdb, cfg.Stream)
		dlq := NewRedisDLQ(rdb, cfg.DLQStream, enqueuer)
		return &Backend{
			Enqueuer: enqueuer,
			DLQ:      dlq,
			newDequeuer: func(exec *Executor) Dequeuer {
				return NewRedisDequeuer(rdb, enqueuer, dlq, exec, cfg, log)
			},
		}, nil

	case "sqs":
		if cfg.SQSQueueURL == "" || cfg.SQSDLQueueURL == "" {
			return nil, errors.New("sqs queue requires sqs_queue_url and sqs_dlq_url")
		}
		client, err := newAWSSQSClient(ctx, cfg.SQSRegion, cfg.SQSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		return newSQSBackend(client, cfg, log), nil

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}

func newSQSBackend(client sqsAPI, cfg Config, log zerolog.Logger) *Backend {
	enqueuer := NewSQSEnqueuer(client, cfg.SQSQueueURL)
	dlq := NewSQSDLQ(client, cfg.SQSDLQueueURL, enqueuer, log)
	return &Backend{
		Enqueuer: enqueuer,
		DLQ:      dlq,
		newDequeuer: func(exec *Executor) Dequeuer {
			return NewSQSDequeuer(client, cfg.SQSQueueURL, exec, dlq, enqueuer, cfg, log)
		},
	}
}
