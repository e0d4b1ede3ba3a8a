package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reconcile"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// eventApplier is the slice of the reconciler the handler needs.
type eventApplier interface {
	Apply(ctx context.Context, ev events.PaymentEvent) (reconcile.Result, error)
}

// Handler receives Razorpay webhook deliveries, verifies their signature,
// and feeds normalized events into the reconciler.
type Handler struct {
	secret string
	engine eventApplier
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a webhook handler. An empty secret disables signature
// verification, for local development against the Razorpay test dashboard.
func NewHandler(secret string, engine eventApplier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{secret: secret, engine: engine, logger: logger, now: time.Now}
}

// Handle processes one webhook delivery. Redeliveries are expected: the
// reconciler dedups them, and this handler always returns 200 for anything
// it verified and parsed, so the gateway stops retrying.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifySignature(h.secret, body, r.Header.Get("X-Razorpay-Signature")) {
		h.logger.Warn("webhook signature verification failed")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ev, err := Normalize(body, h.now().UTC())
	if err != nil {
		if errors.Is(err, ErrUnrecognizedEvent) {
			// Acknowledge so Razorpay stops redelivering event types we
			// never act on.
			h.logger.Info("dropping unrecognized webhook event", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook payload rejected", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.engine.Apply(r.Context(), ev)
	if err != nil {
		h.logger.Error("webhook event apply failed", "error", err, "client_id", ev.ClientID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("webhook event processed",
		"event_id", ev.ID, "client_id", ev.ClientID, "outcome", res.Outcome, "reason", res.Reason)
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Razorpay-Signature header: hex HMAC-SHA256
// of the raw body under the webhook secret.
func verifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}
