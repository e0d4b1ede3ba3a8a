package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs, narrow enough for
// pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists reminder jobs in Postgres so reminders survive restarts and
// missed instants dispatch on the first tick after boot.
type Store struct {
	pool PgxPool
}

// NewStore creates a Postgres-backed job store.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

var _ JobStore = (*Store)(nil)

// Upsert inserts the job; the (client_id, scheduled_at) primary key makes
// regeneration a no-op for existing jobs.
func (s *Store) Upsert(ctx context.Context, job Job) (bool, error) {
	query := `
		INSERT INTO reminder_jobs (client_id, scheduled_at, offset_label)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id, scheduled_at) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, job.ClientID, job.ScheduledAt.UTC(), job.OffsetLabel)
	if err != nil {
		return false, fmt.Errorf("reminders: upsert job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListDue returns undispatched jobs whose instant has passed, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]Job, error) {
	query := `
		SELECT client_id, scheduled_at, offset_label, dispatched, attempts, last_error, dispatched_at
		FROM reminder_jobs
		WHERE dispatched = false AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`
	rows, err := s.pool.Query(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ClientID, &j.ScheduledAt, &j.OffsetLabel, &j.Dispatched, &j.Attempts, &j.LastError, &j.DispatchedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan due row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: iterate due rows: %w", err)
	}
	return out, nil
}

// MarkDispatched records a successful dispatch.
func (s *Store) MarkDispatched(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, at time.Time) error {
	query := `
		UPDATE reminder_jobs
		SET dispatched = true, attempts = $3, last_error = '', dispatched_at = $4
		WHERE client_id = $1 AND scheduled_at = $2`
	tag, err := s.pool.Exec(ctx, query, clientID, scheduledAt.UTC(), attempts, at.UTC())
	if err != nil {
		return fmt.Errorf("reminders: mark dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed terminates a job after its dispatch attempts are exhausted.
func (s *Store) MarkFailed(ctx context.Context, clientID string, scheduledAt time.Time, attempts int, lastError string) error {
	query := `
		UPDATE reminder_jobs
		SET dispatched = true, attempts = $3, last_error = $4
		WHERE client_id = $1 AND scheduled_at = $2`
	tag, err := s.pool.Exec(ctx, query, clientID, scheduledAt.UTC(), attempts, lastError)
	if err != nil {
		return fmt.Errorf("reminders: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CancelForClient marks every undispatched job for the client as cancelled.
func (s *Store) CancelForClient(ctx context.Context, clientID string) (int, error) {
	query := `
		UPDATE reminder_jobs
		SET dispatched = true, attempts = 0, last_error = $2
		WHERE client_id = $1 AND dispatched = false`
	tag, err := s.pool.Exec(ctx, query, clientID, cancelledPaid)
	if err != nil {
		return 0, fmt.Errorf("reminders: cancel for client: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
