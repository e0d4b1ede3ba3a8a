package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	"github.com/shajaurahman10/remindly-pay-flow/internal/livefeed"
	"github.com/shajaurahman10/remindly-pay-flow/internal/webhook"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	ClientsHandler  *clients.Handler
	RazorpayWebhook *webhook.Handler
	MetricsHandler  http.Handler

	// FeedState exposes the live feed's connection state on /health.
	FeedState func() livefeed.State
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler(cfg.FeedState))

	if cfg.RazorpayWebhook != nil {
		r.Post("/webhooks/razorpay", cfg.RazorpayWebhook.Handle)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.ClientsHandler != nil {
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", cfg.ClientsHandler.CreateClient)
			r.Get("/{id}", cfg.ClientsHandler.GetClient)
		})
	}

	return r
}

func healthHandler(feedState func() livefeed.State) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]string{"status": "ok"}
		if feedState != nil {
			body["live_feed"] = string(feedState())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}
