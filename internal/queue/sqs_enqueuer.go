package queue

import (
	"context"
	"fmt"
	"time"
)

// maxSQSDelay is the longest delivery delay SQS accepts.
const maxSQSDelay = 900 * time.Second

// SQSEnqueuer publishes payloads to an SQS queue.
type SQSEnqueuer struct {
	client   sqsAPI
	queueURL string
}

// NewSQSEnqueuer creates an SQSEnqueuer targeting queueURL.
func NewSQSEnqueuer(client sqsAPI, queueURL string) *SQSEnqueuer {
	return &SQSEnqueuer{client: client, queueURL: queueURL}
}

// Enqueue sends the payload and returns the SQS message ID.
func (e *SQSEnqueuer) Enqueue(ctx context.Context, msg *Message) (string, error) {
	return e.EnqueueWithDelay(ctx, msg, 0)
}

// EnqueueWithDelay sends the payload with a delivery delay. Delays are
// rounded up to whole seconds and capped at 15 minutes.
func (e *SQSEnqueuer) EnqueueWithDelay(ctx context.Context, msg *Message, delay time.Duration) (string, error) {
	data, err := msg.Encode()
	if err != nil {
		return "", err
	}

	delay = min(delay, maxSQSDelay)
	delaySeconds := int32((delay + time.Second - 1) / time.Second)

	out, err := e.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:     e.queueURL,
		MessageBody:  string(data),
		DelaySeconds: delaySeconds,
	})
	if err != nil {
		return "", fmt.Errorf("sqs send message: %w", err)
	}

	MessagesEnqueuedTotal.Inc()

	return out.MessageID, nil
}
