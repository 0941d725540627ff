package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DLQMessage wraps an exhausted payload with failure metadata. Exactly one
// of OriginalMessage and RawPayload is set.
type DLQMessage struct {
	OriginalMessage *Message `json:"original_message,omitempty"`
	// RawPayload is the undecodable body as it was received.
	RawPayload string    `json:"raw_payload,omitempty"`
	FinalError string    `json:"final_error"`
	Attempts   int       `json:"attempts"`
	MovedAt    time.Time `json:"moved_at"`
}

var errEmptyDLQEntry = errors.New("dlq entry has no payload")

// Payload returns the message to re-enqueue. A raw entry is decoded again
// and validated, so one that is still malformed stays in the DLQ.
func (m *DLQMessage) Payload() (*Message, error) {
	if m.OriginalMessage != nil {
		return m.OriginalMessage, nil
	}
	if m.RawPayload == "" {
		return nil, errEmptyDLQEntry
	}
	msg, err := Decode([]byte(m.RawPayload))
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func newDLQMessage(msg *Message, reason string) ([]byte, error) {
	return marshalDLQ(DLQMessage{
		OriginalMessage: msg,
		FinalError:      reason,
		Attempts:        msg.Attempt,
		MovedAt:         time.Now().UTC(),
	})
}

func newRawDLQMessage(raw []byte, reason string) ([]byte, error) {
	return marshalDLQ(DLQMessage{
		RawPayload: string(raw),
		FinalError: reason,
		MovedAt:    time.Now().UTC(),
	})
}

func marshalDLQ(m DLQMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal dlq message: %w", err)
	}
	return data, nil
}

// RedisDLQ manages dead letter queue operations backed by a Redis stream.
type RedisDLQ struct {
	client   *redis.Client
	stream   string
	enqueuer Enqueuer
}

// NewRedisDLQ creates a RedisDLQ on stream. Reprocessed payloads go back
// through enqueuer.
func NewRedisDLQ(client *redis.Client, stream string, enqueuer Enqueuer) *RedisDLQ {
	return &RedisDLQ{client: client, stream: stream, enqueuer: enqueuer}
}

// MoveToDLQ appends the exhausted payload to the DLQ stream.
func (d *RedisDLQ) MoveToDLQ(ctx context.Context, msg *Message, reason string) error {
	data, err := newDLQMessage(msg, reason)
	if err != nil {
		return err
	}
	return d.add(ctx, data)
}

// MoveRawToDLQ appends an undecodable body to the DLQ stream.
func (d *RedisDLQ) MoveRawToDLQ(ctx context.Context, raw []byte, reason string) error {
	data, err := newRawDLQMessage(raw, reason)
	if err != nil {
		return err
	}
	return d.add(ctx, data)
}

func (d *RedisDLQ) add(ctx context.Context, data []byte) error {
	err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", d.stream, err)
	}

	DLQMessagesTotal.Inc()

	return nil
}

// List returns up to count DLQ entries keyed by stream entry ID, oldest
// first.
func (d *RedisDLQ) List(ctx context.Context, count int64) (map[string]DLQMessage, error) {
	msgs, err := d.client.XRangeN(ctx, d.stream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange dlq stream %s: %w", d.stream, err)
	}
	out := make(map[string]DLQMessage, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var dlqMsg DLQMessage
		if err := json.Unmarshal([]byte(data), &dlqMsg); err != nil {
			continue
		}
		out[m.ID] = dlqMsg
	}
	return out, nil
}

// Reprocess removes entries from the DLQ, resets their attempt count and
// re-enqueues them to the primary stream. Unknown entries and raw bodies
// that still do not decode are skipped and left in place. It returns the number of payloads re-enqueued.
func (d *RedisDLQ) Reprocess(ctx context.Context, entryIDs []string) (int, error) {
	reprocessed := 0

	for _, entryID := range entryIDs {
		msgs, err := d.client.XRange(ctx, d.stream, entryID, entryID).Result()
		if err != nil {
			return reprocessed, fmt.Errorf("xrange dlq entry %s: %w", entryID, err)
		}
		if len(msgs) == 0 {
			continue
		}

		data, ok := msgs[0].Values["data"].(string)
		if !ok {
			continue
		}

		var dlqMsg DLQMessage
		if err := json.Unmarshal([]byte(data), &dlqMsg); err != nil {
			continue
		}
		msg, err := dlqMsg.Payload()
		if err != nil {
			continue
		}

		msg.Attempt = 0
		if _, err := d.enqueuer.Enqueue(ctx, msg); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue message %s: %w", msg.ID, err)
		}

		if err := d.client.XDel(ctx, d.stream, entryID).Err(); err != nil {
			return reprocessed, fmt.Errorf("xdel dlq entry %s: %w", entryID, err)
		}

		reprocessed++
		DLQReprocessedTotal.Inc()
	}

	return reprocessed, nil
}
