package clients

import (
	"strings"
	"time"
)

// Status is the stored payment status of a client. Only pending and paid are
// ever persisted; overdue exists purely as a derived read-time view.
type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

// PaymentOption is a payment channel the client may settle through.
type PaymentOption string

const (
	OptionUPI         PaymentOption = "upi"
	OptionBank        PaymentOption = "bank"
	OptionCash        PaymentOption = "cash"
	OptionGatewayLink PaymentOption = "gateway_link"
)

// Client is the authoritative per-client payment record. It is mutated only
// through the reconciler's single-writer boundary.
type Client struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	AmountPaise      int64           `json:"amount_paise"`
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	Status           Status          `json:"status"`
	PaymentOptions   []PaymentOption `json:"payment_options"`
	UPIID            string          `json:"upi_id,omitempty"`
	PaymentLinkURL   string          `json:"payment_link_url,omitempty"`
	QRCodeURL        string          `json:"qr_code_url,omitempty"`
	LastReminderAt   *time.Time      `json:"last_reminder_at,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	ReconciledEventID string         `json:"reconciled_event_id,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EffectiveStatus derives the status visible to readers: a stored pending
// record past the end of its payment window reads as overdue. The derived
// value is never written back.
func (c *Client) EffectiveStatus(now time.Time) Status {
	if c.Status != StatusPending {
		return c.Status
	}
	if now.After(endOfDay(c.WindowEnd)) {
		return StatusOverdue
	}
	return StatusPending
}

// Live reports whether the client still participates in reminder scheduling.
func (c *Client) Live(now time.Time) bool {
	s := c.EffectiveStatus(now)
	return s == StatusPending || s == StatusOverdue
}

// HasOption reports whether the given payment channel is enabled.
func (c *Client) HasOption(opt PaymentOption) bool {
	for _, o := range c.PaymentOptions {
		if o == opt {
			return true
		}
	}
	return false
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// CreateClientRequest is the request body for creating a client record.
type CreateClientRequest struct {
	OwnerID           string          `json:"owner_id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	AmountPaise       int64           `json:"amount_paise"`
	WindowStart       time.Time       `json:"window_start"`
	WindowEnd         time.Time       `json:"window_end"`
	PaymentOptions    []PaymentOption `json:"payment_options"`
	UPIID             string          `json:"upi_id,omitempty"`
	QRCodeURL         string          `json:"qr_code_url,omitempty"`
	CreateGatewayLink bool            `json:"create_gateway_link,omitempty"`
}

// Validate validates the create client request
func (r *CreateClientRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrInvalidPhone
	}
	if r.AmountPaise <= 0 {
		return ErrInvalidAmount
	}
	if !r.WindowStart.Before(r.WindowEnd) {
		return ErrInvalidWindow
	}
	if len(r.PaymentOptions) == 0 {
		return ErrNoPaymentOptions
	}
	return nil
}
