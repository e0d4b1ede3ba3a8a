package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	"github.com/shajaurahman10/remindly-pay-flow/internal/livefeed"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := clients.NewInMemoryRepository()
	return New(&Config{
		ClientsHandler: clients.NewHandler(repo, nil, nil),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		FeedState: func() livefeed.State { return livefeed.StateConnected },
	})
}

func TestHealthRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"live_feed":"connected"`) {
		t.Fatalf("health should report feed state: %s", rr.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestClientRoutes(t *testing.T) {
	h := newTestRouter(t)

	body := `{"name":"Asha","phone":"9876543210","amount_paise":150000,` +
		`"window_start":"2024-01-01T00:00:00Z","window_end":"2024-01-15T00:00:00Z",` +
		`"payment_options":["upi"],"upi_id":"asha@upi"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients/does-not-exist", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWebhookRouteAbsentWithoutHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", nil))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected unrouted webhook, got %d", rr.Code)
	}
}
