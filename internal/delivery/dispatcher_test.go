package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sungwon/report-mailer/internal/queue"
	"github.com/sungwon/report-mailer/internal/report"
)

type fakeEnqueuer struct {
	msgs []*queue.Message
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg *queue.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.msgs = append(f.msgs, msg)
	return "1-0", nil
}

func TestDispatcher_Enqueue(t *testing.T) {
	store := report.NewMemoryStore(januaryReport())
	enq := &fakeEnqueuer{}
	d := NewDispatcher(store, enq, zerolog.Nop())

	msg, entryID, err := d.Enqueue(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, "1-0", entryID)
	assert.Equal(t, queue.PayloadVersion, msg.Version)
	assert.Equal(t, "rep-1", msg.ReportID)
	assert.Zero(t, msg.Attempt)
	require.Len(t, enq.msgs, 1)
	assert.Same(t, msg, enq.msgs[0])
}

func TestDispatcher_RefusesSentReport(t *testing.T) {
	r := januaryReport()
	r.EmailStatus = report.StatusSent
	enq := &fakeEnqueuer{}
	d := NewDispatcher(report.NewMemoryStore(r), enq, zerolog.Nop())

	_, _, err := d.Enqueue(context.Background(), "rep-1")
	assert.ErrorIs(t, err, report.ErrAlreadySent)
	assert.Empty(t, enq.msgs)
}

func TestDispatcher_UnknownReport(t *testing.T) {
	d := NewDispatcher(report.NewMemoryStore(), &fakeEnqueuer{}, zerolog.Nop())

	_, _, err := d.Enqueue(context.Background(), "missing")
	assert.ErrorIs(t, err, report.ErrNotFound)
}

func TestDispatcher_EnqueueError(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(report.NewMemoryStore(januaryReport()), enq, zerolog.Nop())

	_, _, err := d.Enqueue(context.Background(), "rep-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}
