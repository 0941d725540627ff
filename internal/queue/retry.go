package queue

import (
	"math/rand/v2"
	"time"
)

// Default retry schedule durations.
var retrySchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// RetryPolicy is the execution contract of a job: how many attempts it gets,
// how long each may run, and how long to wait between them.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Schedule       []time.Duration
}

// DefaultRetryPolicy returns three attempts of five minutes each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 300 * time.Second,
		Schedule:       retrySchedule,
	}
}

// ShouldRetry reports whether another attempt may follow the given
// 1-based attempt number.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// NextBackoff returns the wait before the attempt following attempt, with
// jitter applied: base * (0.5 + rand * 0.5).
func (p RetryPolicy) NextBackoff(attempt int) time.Duration {
	if len(p.Schedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Schedule) {
		idx = len(p.Schedule) - 1
	}

	base := p.Schedule[idx]
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(base) * jitter)
}
