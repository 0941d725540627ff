// Package lock provides the per-report execution lock that keeps two
// workers from delivering the same report at once.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when the key is already held.
var ErrNotAcquired = errors.New("lock: not acquired")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires exclusive, expiring leases on keys.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// NopLocker grants every request. Use it when a single worker runs or
// Redis is not configured.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }

// MemoryLocker is an in-process Locker. Expired leases are reclaimed on the
// next Acquire of the same key.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]*memoryLease
	clock func() time.Time
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]*memoryLease), clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrNotAcquired
	}
	lease := &memoryLease{owner: l, key: key, expires: now.Add(ttl)}
	l.held[key] = lease
	return lease, nil
}

type memoryLease struct {
	owner   *MemoryLocker
	key     string
	expires time.Time
}

func (m *memoryLease) Release(context.Context) error {
	m.owner.mu.Lock()
	defer m.owner.mu.Unlock()
	if m.owner.held[m.key] == m {
		delete(m.owner.held, m.key)
	}
	return nil
}
