package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs, kept narrow so
// tests can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists client records in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a Postgres-backed client repository.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

var _ Repository = (*Store)(nil)

const clientColumns = `id, owner_id, name, phone, amount_paise, window_start, window_end,
	status, payment_options, upi_id, payment_link_url, qr_code_url,
	last_reminder_at, gateway_payment_id, reconciled_event_id, version, created_at, updated_at`

// Create inserts a new client record in pending status at version 1.
func (s *Store) Create(ctx context.Context, req *CreateClientRequest) (*Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO clients (id, owner_id, name, phone, amount_paise, window_start, window_end,
			status, payment_options, upi_id, qr_code_url, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING ` + clientColumns
	row := s.pool.QueryRow(ctx, query,
		uuid.New().String(), req.OwnerID, req.Name, req.Phone, req.AmountPaise,
		req.WindowStart, req.WindowEnd, string(StatusPending),
		optionStrings(req.PaymentOptions), req.UPIID, req.QRCodeURL,
	)
	c, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("clients: insert: %w", err)
	}
	return c, nil
}

// GetByID fetches a client record.
func (s *Store) GetByID(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("clients: load by id: %w", err)
	}
	return c, nil
}

// Update writes a client record guarded by its version; a stale version
// returns ErrVersionConflict.
func (s *Store) Update(ctx context.Context, c *Client) (*Client, error) {
	query := `
		UPDATE clients
		SET status = $3,
			payment_options = $4,
			upi_id = $5,
			payment_link_url = $6,
			qr_code_url = $7,
			last_reminder_at = $8,
			gateway_payment_id = $9,
			reconciled_event_id = $10,
			amount_paise = $11,
			window_start = $12,
			window_end = $13,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + clientColumns
	row := s.pool.QueryRow(ctx, query,
		c.ID, c.Version, string(c.Status), optionStrings(c.PaymentOptions),
		c.UPIID, c.PaymentLinkURL, c.QRCodeURL, c.LastReminderAt,
		c.GatewayPaymentID, c.ReconciledEventID, c.AmountPaise,
		c.WindowStart, c.WindowEnd,
	)
	updated, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row is gone or the version moved underneath us.
			if _, getErr := s.GetByID(ctx, c.ID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("clients: update: %w", err)
	}
	return updated, nil
}

// ListLive returns clients whose stored status is still pending.
func (s *Store) ListLive(ctx context.Context, now time.Time) ([]*Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE status = $1
		ORDER BY window_end ASC`
	rows, err := s.pool.Query(ctx, query, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("clients: list live: %w", err)
	}
	defer rows.Close()

	var out []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("clients: scan live row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clients: iterate live rows: %w", err)
	}
	return out, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var (
		c       Client
		status  string
		options []string
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.AmountPaise,
		&c.WindowStart, &c.WindowEnd, &status, &options,
		&c.UPIID, &c.PaymentLinkURL, &c.QRCodeURL,
		&c.LastReminderAt, &c.GatewayPaymentID, &c.ReconciledEventID,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	c.PaymentOptions = make([]PaymentOption, 0, len(options))
	for _, o := range options {
		c.PaymentOptions = append(c.PaymentOptions, PaymentOption(o))
	}
	return &c, nil
}

func optionStrings(opts []PaymentOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, string(o))
	}
	return out
}
