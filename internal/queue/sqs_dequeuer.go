package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SQSDequeuer manages a pool of worker goroutines that long-poll an SQS
// queue.
type SQSDequeuer struct {
	client   sqsAPI
	queueURL string
	exec     *Executor
	dlq      DeadLetterQueue
	enqueuer *SQSEnqueuer
	config   Config
	log      zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSQSDequeuer creates an SQSDequeuer. Retries are sent back to the queue
// with a delivery delay equal to the backoff.
func NewSQSDequeuer(
	client sqsAPI,
	queueURL string,
	exec *Executor,
	dlq DeadLetterQueue,
	enqueuer *SQSEnqueuer,
	cfg Config,
	log zerolog.Logger,
) *SQSDequeuer {
	return &SQSDequeuer{
		client:   client,
		queueURL: queueURL,
		exec:     exec,
		dlq:      dlq,
		enqueuer: enqueuer,
		config:   cfg.withDefaults(),
		log:      log,
	}
}

// Start launches the worker goroutines.
func (d *SQSDequeuer) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	for i := range d.config.WorkerCount {
		d.wg.Add(1)
		go d.runWorker(ctx, fmt.Sprintf("sqs-worker-%d", i))
	}

	d.log.Info().
		Int("worker_count", d.config.WorkerCount).
		Str("queue_url", d.queueURL).
		Msg("sqs dequeuer started")

	return nil
}

// Stop cancels the workers and waits for them within the shutdown timeout.
func (d *SQSDequeuer) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		d.log.Info().Msg("sqs dequeuer stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		d.log.Warn().Msg("sqs dequeuer shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", d.config.ShutdownTimeout)
	}
}

func (d *SQSDequeuer) runWorker(ctx context.Context, workerName string) {
	defer d.wg.Done()

	d.log.Debug().Str("worker", workerName).Msg("sqs worker started")

	for {
		select {
		case <-ctx.Done():
			d.log.Debug().Str("worker", workerName).Msg("sqs worker stopping")
			return
		default:
		}

		out, err := d.client.ReceiveMessage(ctx, &sqsReceiveInput{
			QueueURL:            d.queueURL,
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     d.config.SQSWaitTime,
			VisibilityTimeout:   d.config.SQSVisTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Str("worker", workerName).Msg("sqs receive error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, sqsMsg := range out.Messages {
			d.processMessage(ctx, sqsMsg)
		}
	}
}

// processMessage runs one received payload through the executor. The
// original is deleted regardless of outcome; retries are new messages sent
// with a delay and undecodable bodies go to the DLQ raw.
func (d *SQSDequeuer) processMessage(ctx context.Context, sqsMsg sqsReceivedMessage) {
	detached := context.WithoutCancel(ctx)
	defer d.delete(detached, sqsMsg)

	msg, err := Decode([]byte(sqsMsg.Body))
	if err != nil {
		d.log.Error().Err(err).
			Str("sqs_message_id", sqsMsg.MessageID).
			Msg("failed to decode sqs message")
		if err := d.dlq.MoveRawToDLQ(detached, []byte(sqsMsg.Body), err.Error()); err != nil {
			d.log.Error().Err(err).
				Str("sqs_message_id", sqsMsg.MessageID).
				Msg("failed to move malformed message to DLQ")
		}
		return
	}

	out := d.exec.Execute(ctx, msg)
	switch out.Action {
	case ActionRetry:
		if _, err := d.enqueuer.EnqueueWithDelay(detached, msg, out.Backoff); err != nil {
			d.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to re-enqueue for retry")
		}
	case ActionDead:
		if err := d.dlq.MoveToDLQ(detached, msg, out.Err.Error()); err != nil {
			d.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to move to DLQ")
		}
	}
}

func (d *SQSDequeuer) delete(ctx context.Context, sqsMsg sqsReceivedMessage) {
	if err := d.client.DeleteMessage(ctx, &sqsDeleteInput{
		QueueURL:      d.queueURL,
		ReceiptHandle: sqsMsg.ReceiptHandle,
	}); err != nil {
		d.log.Error().Err(err).
			Str("sqs_message_id", sqsMsg.MessageID).
			Msg("failed to delete sqs message")
	}
}
