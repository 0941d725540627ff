package report

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It applies the same transition rules
// as the database store and counts writes per report.
type MemoryStore struct {
	mu      sync.Mutex
	reports map[string]Report
	writes  map[string]int
}

// NewMemoryStore creates a MemoryStore holding copies of reports.
func NewMemoryStore(reports ...Report) *MemoryStore {
	s := &MemoryStore{reports: make(map[string]Report), writes: make(map[string]int)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

// Get returns a copy of the stored report.
func (s *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Update writes the delivery fields. A sent report only accepts another
// sent write.
func (s *MemoryStore) Update(_ context.Context, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	if r.EmailStatus == StatusSent && fields.EmailStatus != StatusSent {
		return ErrAlreadySent
	}
	if fields.EmailStatus != "" {
		r.EmailStatus = fields.EmailStatus
	}
	if fields.SentAt != nil {
		t := *fields.SentAt
		r.SentAt = &t
	}
	s.reports[id] = r
	s.writes[id]++
	return nil
}

// Writes returns how many successful updates report id received.
func (s *MemoryStore) Writes(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[id]
}
