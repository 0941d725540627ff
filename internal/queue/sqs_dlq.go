package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// maxReprocessRounds bounds how many receive calls Reprocess makes while
// looking for the requested entries.
const maxReprocessRounds = 10

// SQSDLQ manages dead letter queue operations backed by an SQS queue.
type SQSDLQ struct {
	client   sqsAPI
	dlqURL   string
	enqueuer Enqueuer
	log      zerolog.Logger
}

// NewSQSDLQ creates an SQSDLQ on dlqURL. Reprocessed payloads go back
// through enqueuer.
func NewSQSDLQ(client sqsAPI, dlqURL string, enqueuer Enqueuer, log zerolog.Logger) *SQSDLQ {
	return &SQSDLQ{
		client:   client,
		dlqURL:   dlqURL,
		enqueuer: enqueuer,
		log:      log,
	}
}

// MoveToDLQ sends the exhausted payload to the dead letter queue.
func (d *SQSDLQ) MoveToDLQ(ctx context.Context, msg *Message, reason string) error {
	data, err := newDLQMessage(msg, reason)
	if err != nil {
		return err
	}
	return d.send(ctx, data)
}

// MoveRawToDLQ sends an undecodable body to the dead letter queue.
func (d *SQSDLQ) MoveRawToDLQ(ctx context.Context, raw []byte, reason string) error {
	data, err := newRawDLQMessage(raw, reason)
	if err != nil {
		return err
	}
	return d.send(ctx, data)
}

func (d *SQSDLQ) send(ctx context.Context, data []byte) error {
	if _, err := d.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:    d.dlqURL,
		MessageBody: string(data),
	}); err != nil {
		return fmt.Errorf("sqs send to dlq: %w", err)
	}

	DLQMessagesTotal.Inc()

	return nil
}

// Reprocess re-enqueues the DLQ messages whose SQS message IDs are listed.
// SQS cannot read by ID, so the DLQ is polled and messages that were not
// requested are made visible again right away.
func (d *SQSDLQ) Reprocess(ctx context.Context, entryIDs []string) (int, error) {
	wanted := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		wanted[id] = true
	}

	reprocessed := 0
	for round := 0; round < maxReprocessRounds && len(wanted) > 0; round++ {
		out, err := d.client.ReceiveMessage(ctx, &sqsReceiveInput{
			QueueURL:            d.dlqURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     0,
			VisibilityTimeout:   30,
		})
		if err != nil {
			return reprocessed, fmt.Errorf("sqs receive from dlq: %w", err)
		}
		if len(out.Messages) == 0 {
			break
		}

		for _, sqsMsg := range out.Messages {
			if !wanted[sqsMsg.MessageID] {
				d.release(ctx, sqsMsg)
				continue
			}
			delete(wanted, sqsMsg.MessageID)

			var dlqMsg DLQMessage
			err := json.Unmarshal([]byte(sqsMsg.Body), &dlqMsg)
			var msg *Message
			if err == nil {
				msg, err = dlqMsg.Payload()
			}
			if err != nil {
				d.log.Warn().Err(err).Str("sqs_message_id", sqsMsg.MessageID).Msg("skipping malformed dlq message")
				d.release(ctx, sqsMsg)
				continue
			}

			msg.Attempt = 0
			if _, err := d.enqueuer.Enqueue(ctx, msg); err != nil {
				return reprocessed, fmt.Errorf("re-enqueue message %s: %w", msg.ID, err)
			}

			if err := d.client.DeleteMessage(ctx, &sqsDeleteInput{
				QueueURL:      d.dlqURL,
				ReceiptHandle: sqsMsg.ReceiptHandle,
			}); err != nil {
				return reprocessed, fmt.Errorf("delete dlq message: %w", err)
			}

			reprocessed++
			DLQReprocessedTotal.Inc()
		}
	}

	return reprocessed, nil
}

func (d *SQSDLQ) release(ctx context.Context, sqsMsg sqsReceivedMessage) {
	if err := d.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
		QueueURL:          d.dlqURL,
		ReceiptHandle:     sqsMsg.ReceiptHandle,
		VisibilityTimeout: 0,
	}); err != nil {
		d.log.Warn().Err(err).Str("sqs_message_id", sqsMsg.MessageID).Msg("failed to release dlq message")
	}
}
