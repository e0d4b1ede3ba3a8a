package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var storeColumns = []string{
	"id", "owner_id", "name", "phone", "amount_paise", "window_start", "window_end",
	"status", "payment_options", "upi_id", "payment_link_url", "qr_code_url",
	"last_reminder_at", "gateway_payment_id", "reconciled_event_id", "version", "created_at", "updated_at",
}

func storeRow(mock pgxmock.PgxPoolIface, id string, status string, version int64) *pgxmock.Rows {
	now := time.Now().UTC()
	return mock.NewRows(storeColumns).AddRow(
		id, "owner-1", "Asha", "9876543210", int64(150000),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		status, []string{"upi"}, "asha@upi", "", "",
		(*time.Time)(nil), "", "", version, now, now,
	)
}

func TestStoreGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT .* FROM clients WHERE id").
		WithArgs("c1").
		WillReturnRows(storeRow(mock, "c1", "pending", 1))

	store := NewStore(mock)
	c, err := store.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Status != StatusPending || c.Version != 1 {
		t.Fatalf("unexpected record: %+v", c)
	}
	if len(c.PaymentOptions) != 1 || c.PaymentOptions[0] != OptionUPI {
		t.Fatalf("unexpected options: %v", c.PaymentOptions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT .* FROM clients WHERE id").
		WithArgs("missing").
		WillReturnRows(mock.NewRows(storeColumns))

	store := NewStore(mock)
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestStoreUpdateVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	// The guarded UPDATE matches no row, then the follow-up read finds the
	// record at a newer version.
	mock.ExpectQuery("UPDATE clients").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnRows(mock.NewRows(storeColumns))
	mock.ExpectQuery("SELECT .* FROM clients WHERE id").
		WithArgs("c1").
		WillReturnRows(storeRow(mock, "c1", "paid", 3))

	store := NewStore(mock)
	stale := &Client{ID: "c1", Version: 1, Status: StatusPaid, PaymentOptions: []PaymentOption{OptionUPI}}
	if _, err := store.Update(context.Background(), stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreListLive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT .* FROM clients").
		WithArgs("pending").
		WillReturnRows(storeRow(mock, "c1", "pending", 1))

	store := NewStore(mock)
	live, err := store.ListLive(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 1 || live[0].ID != "c1" {
		t.Fatalf("expected one live client, got %d", len(live))
	}
}
