package livefeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
)

// errUndecodable marks live messages that do not carry a reconcilable
// payment update (heartbeats, unrelated broadcasts, garbage).
var errUndecodable = errors.New("livefeed: undecodable message")

// liveMessage is the push schema of the gateway's live channel.
type liveMessage struct {
	ClientID  string `json:"clientId"`
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paidAt"`
}

// decode converts one live channel message into the engine's event shape.
func decode(payload []byte, receivedAt time.Time) (events.PaymentEvent, error) {
	var msg liveMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return events.PaymentEvent{}, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	if msg.ClientID == "" {
		return events.PaymentEvent{}, fmt.Errorf("%w: missing clientId", errUndecodable)
	}

	var status events.Status
	switch msg.Status {
	case "paid":
		status = events.StatusPaid
	case "failed":
		status = events.StatusFailed
	default:
		return events.PaymentEvent{}, fmt.Errorf("%w: status %q", errUndecodable, msg.Status)
	}

	occurredAt := receivedAt
	if msg.PaidAt != "" {
		if parsed, err := time.Parse(time.RFC3339, msg.PaidAt); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	id := "live:" + msg.PaymentID
	if msg.PaymentID == "" {
		id = fmt.Sprintf("live:%s:%d", msg.ClientID, receivedAt.UnixNano())
	}

	return events.PaymentEvent{
		ID:               id,
		Source:           events.SourceLive,
		ClientID:         msg.ClientID,
		GatewayPaymentID: msg.PaymentID,
		Status:           status,
		AmountPaise:      msg.Amount,
		OccurredAt:       occurredAt,
		ReceivedAt:       receivedAt.UTC(),
	}, nil
}
