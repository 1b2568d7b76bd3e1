package csrf

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store guarded by a single mutex.
// Records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record // identity -> record
	ttl     time.Duration
	now     func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store issuing tokens valid for ttl.
func NewMemoryStore(ttl time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue replaces the identity's record with a fresh one. It never fails.
func (s *MemoryStore) Issue(_ context.Context, identity string) (string, error) {
	rec := NewRecord(identity, s.now(), s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[identity] = rec
	return rec.Token, nil
}

func (s *MemoryStore) Validate(_ context.Context, identity, presented string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		return DecisionNotFound
	}
	if rec.Expired(s.now()) {
		delete(s.records, identity)
		return DecisionExpired
	}
	if !rec.Matches(presented) {
		return DecisionMismatch
	}
	return DecisionValid
}

// Sweep holds the lock for one full scan.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for identity, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, identity)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
