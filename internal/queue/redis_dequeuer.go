package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisDequeuer manages a pool of worker goroutines that consume payloads
// from a Redis stream through a consumer group.
type RedisDequeuer struct {
	client   *redis.Client
	enqueuer Enqueuer
	dlq      DeadLetterQueue
	exec     *Executor
	config   Config
	log      zerolog.Logger

	wg      sync.WaitGroup
	retries sync.WaitGroup
	cancel  context.CancelFunc
}

// NewRedisDequeuer creates a RedisDequeuer. Failed attempts are re-enqueued
// through enqueuer and exhausted payloads go to dlq.
func NewRedisDequeuer(
	client *redis.Client,
	enqueuer Enqueuer,
	dlq DeadLetterQueue,
	exec *Executor,
	cfg Config,
	log zerolog.Logger,
) *RedisDequeuer {
	return &RedisDequeuer{
		client:   client,
		enqueuer: enqueuer,
		dlq:      dlq,
		exec:     exec,
		config:   cfg.withDefaults(),
		log:      log,
	}
}

// Start creates the consumer group (if it does not already exist) and
// launches the configured number of worker goroutines.
func (d *RedisDequeuer) Start(ctx context.Context) error {
	if err := d.createConsumerGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ctx, d.cancel = context.WithCancel(ctx)

	for i := range d.config.WorkerCount {
		d.wg.Add(1)
		go d.runWorker(ctx, fmt.Sprintf("worker-%d", i))
	}

	d.log.Info().
		Int("worker_count", d.config.WorkerCount).
		Str("stream", d.config.Stream).
		Msg("redis dequeuer started")

	return nil
}

// Stop signals all workers to stop and waits up to the configured shutdown
// timeout for in-flight attempts and pending retries to settle.
func (d *RedisDequeuer) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.retries.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		d.log.Info().Msg("redis dequeuer stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		d.log.Warn().Msg("redis dequeuer shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", d.config.ShutdownTimeout)
	}
}

func (d *RedisDequeuer) createConsumerGroup(ctx context.Context) error {
	err := d.client.XGroupCreateMkStream(ctx, d.config.Stream, d.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on stream %s: %w", d.config.Group, d.config.Stream, err)
	}
	return nil
}

func (d *RedisDequeuer) runWorker(ctx context.Context, consumerName string) {
	defer d.wg.Done()

	d.log.Debug().Str("consumer", consumerName).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			d.log.Debug().Str("consumer", consumerName).Msg("worker stopping")
			return
		default:
		}

		xMsgs, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    d.config.Group,
			Consumer: consumerName,
			Streams:  []string{d.config.Stream, ">"},
			Count:    1,
			Block:    d.config.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			d.log.Error().Err(err).Str("consumer", consumerName).Msg("xreadgroup error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range xMsgs {
			for _, xMsg := range stream.Messages {
				d.processMessage(ctx, xMsg)
			}
		}
	}
}

// processMessage decodes one stream entry, runs it through the executor and
// acts on the outcome. The entry is acknowledged regardless of outcome;
// retries are new entries and undecodable entries go to the DLQ raw.
func (d *RedisDequeuer) processMessage(ctx context.Context, xMsg redis.XMessage) {
	// Acknowledge with a detached context so shutdown does not leave the
	// entry pending.
	defer d.acknowledge(context.WithoutCancel(ctx), xMsg.ID)

	data, ok := xMsg.Values["data"].(string)
	if !ok {
		d.log.Error().Str("entry_id", xMsg.ID).Msg("invalid message data type")
		raw, _ := json.Marshal(xMsg.Values)
		d.deadLetterRaw(ctx, xMsg.ID, raw, "invalid message data type")
		return
	}

	msg, err := Decode([]byte(data))
	if err != nil {
		d.log.Error().Err(err).Str("entry_id", xMsg.ID).Msg("failed to decode message")
		d.deadLetterRaw(ctx, xMsg.ID, []byte(data), err.Error())
		return
	}

	out := d.exec.Execute(ctx, msg)
	switch out.Action {
	case ActionRetry:
		d.retries.Add(1)
		go d.retryAfterBackoff(ctx, msg, out.Backoff)
	case ActionDead:
		if err := d.dlq.MoveToDLQ(context.WithoutCancel(ctx), msg, out.Err.Error()); err != nil {
			d.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to move to DLQ")
		}
	}
}

func (d *RedisDequeuer) deadLetterRaw(ctx context.Context, entryID string, raw []byte, reason string) {
	if err := d.dlq.MoveRawToDLQ(context.WithoutCancel(ctx), raw, reason); err != nil {
		d.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to move malformed message to DLQ")
	}
}

func (d *RedisDequeuer) acknowledge(ctx context.Context, entryID string) {
	if err := d.client.XAck(ctx, d.config.Stream, d.config.Group, entryID).Err(); err != nil {
		d.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to acknowledge message")
	}
}

// retryAfterBackoff waits for the backoff, then re-enqueues msg. On
// shutdown the payload is re-enqueued immediately so the retry survives the
// process.
func (d *RedisDequeuer) retryAfterBackoff(ctx context.Context, msg *Message, backoff time.Duration) {
	defer d.retries.Done()

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	if _, err := d.enqueuer.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
		d.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to re-enqueue message for retry")
	}
}
