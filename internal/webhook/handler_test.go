package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reconcile"
)

type stubApplier struct {
	applied []events.PaymentEvent
	result  reconcile.Result
	err     error
}

func (s *stubApplier) Apply(_ context.Context, ev events.PaymentEvent) (reconcile.Result, error) {
	s.applied = append(s.applied, ev)
	return s.result, s.err
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(handler *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	rr := httptest.NewRecorder()
	handler.Handle(rr, req)
	return rr
}

func TestHandlerAppliesVerifiedEvent(t *testing.T) {
	engine := &stubApplier{result: reconcile.Result{Outcome: reconcile.OutcomeApplied}}
	handler := NewHandler("secret123", engine, nil)

	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	rr := postWebhook(handler, body, sign(body, "secret123"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(engine.applied) != 1 {
		t.Fatalf("expected one applied event, got %d", len(engine.applied))
	}
	if engine.applied[0].ClientID != "client-1" || engine.applied[0].Status != events.StatusPaid {
		t.Fatalf("unexpected event: %+v", engine.applied[0])
	}
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	engine := &stubApplier{}
	handler := NewHandler("secret123", engine, nil)

	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	rr := postWebhook(handler, body, sign(body, "wrong-secret"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if len(engine.applied) != 0 {
		t.Fatal("event must not reach the reconciler on bad signature")
	}
}

func TestHandlerRejectsMissingSignature(t *testing.T) {
	handler := NewHandler("secret123", &stubApplier{}, nil)
	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestHandlerEmptySecretSkipsVerification(t *testing.T) {
	engine := &stubApplier{result: reconcile.Result{Outcome: reconcile.OutcomeApplied}}
	handler := NewHandler("", engine, nil)

	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(engine.applied) != 1 {
		t.Fatal("expected event applied without signature check")
	}
}

func TestHandlerAcknowledgesUnrecognizedEvent(t *testing.T) {
	engine := &stubApplier{}
	handler := NewHandler("", engine, nil)

	body := buildRazorpayPayload(t, "refund.created", "pay_abc", "client-1", 150000)
	rr := postWebhook(handler, body, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("unrecognized events must be acknowledged, got %d", rr.Code)
	}
	if len(engine.applied) != 0 {
		t.Fatal("unrecognized event must not reach the reconciler")
	}
}

func TestHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewHandler("", &stubApplier{}, nil)
	if rr := postWebhook(handler, []byte(`{"event":"payment.captured","payload":{}}`), ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlerSurfacesApplyFailure(t *testing.T) {
	engine := &stubApplier{err: errors.New("db down")}
	handler := NewHandler("", engine, nil)

	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the gateway retries, got %d", rr.Code)
	}
}

func TestHandlerRedeliveryStaysOK(t *testing.T) {
	engine := &stubApplier{result: reconcile.Result{Outcome: reconcile.OutcomeDeduped}}
	handler := NewHandler("", engine, nil)
	handler.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }

	body := buildRazorpayPayload(t, "payment.captured", "pay_abc", "client-1", 150000)
	for i := 0; i < 2; i++ {
		if rr := postWebhook(handler, body, ""); rr.Code != http.StatusOK {
			t.Fatalf("redelivery %d: expected 200, got %d", i, rr.Code)
		}
	}
	if len(engine.applied) != 2 {
		t.Fatalf("both deliveries should reach the reconciler for dedup, got %d", len(engine.applied))
	}
}
