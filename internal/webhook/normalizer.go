package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
)

var (
	// ErrUnrecognizedEvent marks event types outside the small set this
	// service reconciles; they are acknowledged and dropped.
	ErrUnrecognizedEvent = errors.New("webhook: unrecognized event type")
	// ErrMalformedPayload marks payloads missing the fields needed to
	// correlate the event to a client record.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
)

// Event types Razorpay delivers that this service acts on.
const (
	eventPaymentLinkPaid = "payment_link.paid"
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

type razorpayEnvelope struct {
	Event     string          `json:"event"`
	CreatedAt int64           `json:"created_at"`
	Payload   razorpayPayload `json:"payload"`
}

type razorpayPayload struct {
	Payment     *razorpayWrapper `json:"payment"`
	PaymentLink *razorpayWrapper `json:"payment_link"`
}

type razorpayWrapper struct {
	Entity razorpayEntity `json:"entity"`
}

type razorpayEntity struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

// Normalize converts a raw Razorpay webhook body into the engine's event
// shape. payment_link.paid and payment.captured both normalize to paid;
// payment.failed normalizes to failed; anything else is unrecognized.
func Normalize(body []byte, receivedAt time.Time) (events.PaymentEvent, error) {
	var env razorpayEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return events.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var status events.Status
	switch env.Event {
	case eventPaymentLinkPaid, eventPaymentCaptured:
		status = events.StatusPaid
	case eventPaymentFailed:
		status = events.StatusFailed
	case "":
		return events.PaymentEvent{}, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	default:
		return events.PaymentEvent{}, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, env.Event)
	}

	// payment_link.paid carries both the link and the capturing payment;
	// the payment entity holds the id and notes the engine correlates on.
	entity := env.Payload.Payment
	if entity == nil {
		entity = env.Payload.PaymentLink
	}
	if entity == nil || entity.Entity.ID == "" {
		return events.PaymentEvent{}, fmt.Errorf("%w: missing payment entity", ErrMalformedPayload)
	}

	clientID := entity.Entity.Notes["client_id"]
	if clientID == "" && env.Payload.PaymentLink != nil {
		clientID = env.Payload.PaymentLink.Entity.Notes["client_id"]
	}
	if clientID == "" {
		return events.PaymentEvent{}, fmt.Errorf("%w: missing client_id note", ErrMalformedPayload)
	}
	if status == events.StatusPaid && entity.Entity.Amount <= 0 {
		return events.PaymentEvent{}, fmt.Errorf("%w: missing amount", ErrMalformedPayload)
	}

	occurredAt := receivedAt
	if ts := entity.Entity.CreatedAt; ts > 0 {
		occurredAt = time.Unix(ts, 0).UTC()
	} else if env.CreatedAt > 0 {
		occurredAt = time.Unix(env.CreatedAt, 0).UTC()
	}

	return events.PaymentEvent{
		ID:               env.Event + ":" + entity.Entity.ID,
		Source:           events.SourceWebhook,
		ClientID:         clientID,
		GatewayPaymentID: entity.Entity.ID,
		Status:           status,
		AmountPaise:      entity.Entity.Amount,
		OccurredAt:       occurredAt,
		ReceivedAt:       receivedAt.UTC(),
	}, nil
}
