package clients

import (
	"testing"
	"time"
)

func mkClient(status Status, windowEnd time.Time) *Client {
	return &Client{
		ID:          "c1",
		Name:        "Asha",
		Phone:       "9876543210",
		AmountPaise: 150000,
		WindowStart: windowEnd.AddDate(0, 0, -14),
		WindowEnd:   windowEnd,
		Status:      status,
	}
}

func TestEffectiveStatusDerivesOverdue(t *testing.T) {
	windowEnd := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	c := mkClient(StatusPending, windowEnd)

	onDeadline := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	if got := c.EffectiveStatus(onDeadline); got != StatusPending {
		t.Fatalf("expected pending on the deadline day, got %s", got)
	}

	dayAfter := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if got := c.EffectiveStatus(dayAfter); got != StatusOverdue {
		t.Fatalf("expected overdue after the window, got %s", got)
	}
}

func TestEffectiveStatusNeverDowngradesPaid(t *testing.T) {
	windowEnd := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	c := mkClient(StatusPaid, windowEnd)
	longAfter := windowEnd.AddDate(0, 1, 0)
	if got := c.EffectiveStatus(longAfter); got != StatusPaid {
		t.Fatalf("paid must be absorbing, got %s", got)
	}
}

func TestLive(t *testing.T) {
	windowEnd := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	now := windowEnd.AddDate(0, 0, 2)
	if !mkClient(StatusPending, windowEnd).Live(now) {
		t.Fatal("overdue client should still be live for reminders")
	}
	if mkClient(StatusPaid, windowEnd).Live(now) {
		t.Fatal("paid client should not be live")
	}
}

func TestCreateClientRequestValidate(t *testing.T) {
	base := func() CreateClientRequest {
		return CreateClientRequest{
			Name:           "Asha",
			Phone:          "9876543210",
			AmountPaise:    150000,
			WindowStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			WindowEnd:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			PaymentOptions: []PaymentOption{OptionUPI},
		}
	}

	if err := func() error { r := base(); return r.Validate() }(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateClientRequest)
		want   error
	}{
		{"missing name", func(r *CreateClientRequest) { r.Name = " " }, ErrInvalidName},
		{"missing phone", func(r *CreateClientRequest) { r.Phone = "" }, ErrInvalidPhone},
		{"zero amount", func(r *CreateClientRequest) { r.AmountPaise = 0 }, ErrInvalidAmount},
		{"inverted window", func(r *CreateClientRequest) { r.WindowStart = r.WindowEnd.AddDate(0, 0, 1) }, ErrInvalidWindow},
		{"no options", func(r *CreateClientRequest) { r.PaymentOptions = nil }, ErrNoPaymentOptions},
	}
	for _, tc := range cases {
		req := base()
		tc.mutate(&req)
		if err := req.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
