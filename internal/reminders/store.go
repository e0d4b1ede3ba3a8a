package reminders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// JobStore persists reminder jobs. Upsert must be idempotent on the
// (ClientID, ScheduledAt) key so regeneration never duplicates a job.
type JobStore interface {
	Upsert(ctx context.Context, job Job) (created bool, err error)
	ListDue(ctx context.Context, now time.Time) ([]Job, error)
	MarkDispatched(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, at time.Time) error
	MarkFailed(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, lastError string) error
	CancelForClient(ctx context.Context, clientID string) (int, error)
}

// cancelledPaid is recorded on jobs cancelled because the client paid.
const cancelledPaid = "cancelled: paid"

// MemoryJobStore is a JobStore backed by a keyed map, used in tests and
// single-node development. Durable deployments use the Postgres Store.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

// Upsert adds the job if its key is unseen; an existing job is left untouched.
func (s *MemoryJobStore) Upsert(ctx context.Context, job Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := job.Key()
	if _, ok := s.jobs[key]; ok {
		return false, nil
	}
	j := job
	s.jobs[key] = &j
	return true, nil
}

// ListDue returns undispatched jobs whose instant has passed, oldest first.
func (s *MemoryJobStore) ListDue(ctx context.Context, now time.Time) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for _, j := range s.jobs {
		if !j.Dispatched && !j.ScheduledAt.After(now) {
			due = append(due, *j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].ScheduledAt.Before(due[k].ScheduledAt) })
	return due, nil
}

// MarkDispatched records a successful dispatch.
func (s *MemoryJobStore) MarkDispatched(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobKey(clientID, scheduledAt)]
	if !ok {
		return ErrJobNotFound
	}
	j.Dispatched = true
	j.Attempts = attempts
	j.LastError = ""
	t := at
	j.DispatchedAt = &t
	return nil
}

// MarkFailed terminates a job after its dispatch attempts are exhausted.
func (s *MemoryJobStore) MarkFailed(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobKey(clientID, scheduledAt)]
	if !ok {
		return ErrJobNotFound
	}
	j.Dispatched = true
	j.Attempts = attempts
	j.LastError = lastError
	return nil
}

// CancelForClient marks every undispatched job for the client as cancelled.
func (s *MemoryJobStore) CancelForClient(ctx context.Context, clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, j := range s.jobs {
		if j.ClientID == clientID && !j.Dispatched {
			j.Dispatched = true
			j.Attempts = 0
			j.LastError = cancelledPaid
			n++
		}
	}
	return n, nil
}

// Snapshot returns a copy of every stored job, for tests and diagnostics.
func (s *MemoryJobStore) Snapshot() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Key() < out[k].Key() })
	return out
}

func jobKey(clientID string, scheduledAt time.Time) string {
	return Job{ClientID: clientID, ScheduledAt: scheduledAt}.Key()
}
