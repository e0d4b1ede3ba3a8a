package events

import (
	"strings"
	"time"
)

// Source identifies which feed produced a payment event.
type Source string

const (
	SourceLive    Source = "live"
	SourceWebhook Source = "webhook"
)

// Status is the raw outcome carried by a payment event. Overdue is never a
// raw outcome; it is derived from the payment window at read time.
type Status string

const (
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

// PaymentEvent is the canonical, provider-independent payment notification.
// Both the webhook normalizer and the live feed decoder emit this shape.
type PaymentEvent struct {
	ID               string    `json:"id"`
	Source           Source    `json:"source"`
	ClientID         string    `json:"client_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Status           Status    `json:"status"`
	AmountPaise      int64     `json:"amount_paise"`
	OccurredAt       time.Time `json:"occurred_at"`
	ReceivedAt       time.Time `json:"received_at"`
}

// Valid reports whether the event carries the minimum reconcilable fields.
func (e PaymentEvent) Valid() bool {
	if strings.TrimSpace(e.ClientID) == "" {
		return false
	}
	return e.Status == StatusPaid || e.Status == StatusFailed
}
