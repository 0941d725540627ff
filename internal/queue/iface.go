package queue

import "context"

// Enqueuer publishes delivery payloads.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *Message) (string, error)
}

// Dequeuer consumes payloads.
// Start begins consuming in background goroutines.
// Stop gracefully shuts down consumers.
type Dequeuer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DeadLetterQueue holds payloads whose retry budget is spent.
type DeadLetterQueue interface {
	MoveToDLQ(ctx context.Context, msg *Message, reason string) error
	// MoveRawToDLQ stores a body that could not be decoded so it can be
	// inspected.
	MoveRawToDLQ(ctx context.Context, raw []byte, reason string) error
	// Reprocess re-enqueues the given DLQ entries with a fresh attempt
	// count and removes them from the DLQ.
	Reprocess(ctx context.Context, entryIDs []string) (int, error)
}

// MessageHandler runs one attempt for a payload.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// Finalizer is called once when a payload has used its last attempt.
type Finalizer interface {
	HandleExhausted(ctx context.Context, msg *Message, cause error) error
}
