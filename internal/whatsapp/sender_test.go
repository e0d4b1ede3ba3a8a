package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type graphStub struct {
	mu        sync.Mutex
	requests  []textMessage
	auths     []string
	paths     []string
	responses []func(w http.ResponseWriter)
}

func (g *graphStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		var msg textMessage
		_ = json.Unmarshal(body, &msg)
		g.requests = append(g.requests, msg)
		g.auths = append(g.auths, r.Header.Get("Authorization"))
		g.paths = append(g.paths, r.URL.Path)

		n := len(g.requests) - 1
		if n < len(g.responses) {
			g.responses[n](w)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OK"}]}`))
	}
}

func ok(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OK"}]}`))
}

func serverError(w http.ResponseWriter) {
	w.WriteHeader(http.StatusBadGateway)
}

func invalidNumber(w http.ResponseWriter) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"error":{"message":"Invalid recipient number","code":131026}}`))
}

func newTestSender(t *testing.T, stub *graphStub) *Sender {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewSender("1234567890", "tok_test", "91", nil).
		WithBaseURL(srv.URL).
		WithRetry(3, 0)
}

func TestSendReminderPostsTextMessage(t *testing.T) {
	stub := &graphStub{}
	s := newTestSender(t, stub)

	receipt, err := s.SendReminder(context.Background(), templateClient(), "1d_before")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if receipt.MessageID != "wamid.OK" || receipt.Attempts != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	if len(stub.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(stub.requests))
	}
	msg := stub.requests[0]
	if msg.MessagingProduct != "whatsapp" || msg.Type != "text" {
		t.Fatalf("unexpected message shape: %+v", msg)
	}
	if msg.To != "919876543210" {
		t.Fatalf("expected normalized recipient, got %q", msg.To)
	}
	if !strings.Contains(msg.Text.Body, "Asha") {
		t.Fatalf("body should carry the client name: %q", msg.Text.Body)
	}
	if stub.auths[0] != "Bearer tok_test" {
		t.Fatalf("expected bearer auth, got %q", stub.auths[0])
	}
	if stub.paths[0] != "/1234567890/messages" {
		t.Fatalf("expected phone number id path, got %q", stub.paths[0])
	}
}

func TestSendReminderUsesConfiguredTemplate(t *testing.T) {
	stub := &graphStub{}
	s := newTestSender(t, stub).WithTemplate("Reminder for {{clientName}}: {{amount}}")

	if _, err := s.SendReminder(context.Background(), templateClient(), "due_date"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := stub.requests[0].Text.Body; !strings.HasPrefix(got, "Reminder for Asha: ₹1500.50") {
		t.Fatalf("template not applied: %q", got)
	}
}

func TestSendReminderRetriesTransientFailures(t *testing.T) {
	stub := &graphStub{responses: []func(http.ResponseWriter){serverError, serverError, ok}}
	s := newTestSender(t, stub)

	receipt, err := s.SendReminder(context.Background(), templateClient(), "due_date")
	if err != nil {
		t.Fatalf("send should recover on third attempt: %v", err)
	}
	if receipt.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", receipt.Attempts)
	}
}

func TestSendReminderExhaustsRetries(t *testing.T) {
	stub := &graphStub{responses: []func(http.ResponseWriter){serverError, serverError, serverError}}
	s := newTestSender(t, stub)

	receipt, err := s.SendReminder(context.Background(), templateClient(), "due_date")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if receipt.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", receipt.Attempts)
	}
	if len(stub.requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(stub.requests))
	}
}

type capturingSink struct {
	mu       sync.Mutex
	subjects []string
}

func (c *capturingSink) Alert(_ context.Context, subject, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

func TestSendReminderPermanentRejectionSkipsRetryAndAlerts(t *testing.T) {
	stub := &graphStub{responses: []func(http.ResponseWriter){invalidNumber}}
	sink := &capturingSink{}
	s := newTestSender(t, stub).WithAlerts(sink)

	receipt, err := s.SendReminder(context.Background(), templateClient(), "due_date")
	if err == nil {
		t.Fatal("expected permanent rejection error")
	}
	if receipt.Attempts != 1 || len(stub.requests) != 1 {
		t.Fatalf("permanent rejection must not retry: attempts=%d requests=%d", receipt.Attempts, len(stub.requests))
	}
	if len(sink.subjects) != 1 || !strings.Contains(sink.subjects[0], "Asha") {
		t.Fatalf("expected one operator alert naming the client, got %v", sink.subjects)
	}
	if !strings.Contains(err.Error(), "Invalid recipient number") {
		t.Fatalf("error should carry the API message: %v", err)
	}
}

func TestSendReminderUnconfigured(t *testing.T) {
	s := NewSender("", "", "91", nil)
	if _, err := s.SendReminder(context.Background(), templateClient(), "due_date"); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestSendReminderRateLimitIsTransient(t *testing.T) {
	tooMany := func(w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) }
	stub := &graphStub{responses: []func(http.ResponseWriter){tooMany, ok}}
	s := newTestSender(t, stub)

	receipt, err := s.SendReminder(context.Background(), templateClient(), "due_date")
	if err != nil {
		t.Fatalf("429 should be retried: %v", err)
	}
	if receipt.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", receipt.Attempts)
	}
}
