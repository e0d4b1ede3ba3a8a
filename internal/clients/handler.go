package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// LinkProvisioner creates a hosted payment link for a new client record.
// The gateway client satisfies this; nil disables link provisioning.
type LinkProvisioner interface {
	ProvisionLink(ctx context.Context, clientID, name, phone string, amountPaise int64) (string, error)
}

// Handler handles HTTP requests for client records
type Handler struct {
	repo   Repository
	links  LinkProvisioner
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a new clients handler
func NewHandler(repo Repository, links LinkProvisioner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		links:  links,
		logger: logger,
		now:    time.Now,
	}
}

// clientResponse is a Client plus its derived read-time status.
type clientResponse struct {
	*Client
	EffectiveStatus Status `json:"effective_status"`
}

// CreateClient handles POST /clients requests
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode create client request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create client", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.CreateGatewayLink && h.links != nil {
		link, err := h.links.ProvisionLink(r.Context(), c.ID, c.Name, c.Phone, c.AmountPaise)
		if err != nil {
			// The record exists either way; the link can be provisioned later.
			h.logger.Warn("payment link provisioning failed", "error", err, "client_id", c.ID)
		} else {
			c.PaymentLinkURL = link
			if updated, err := h.repo.Update(r.Context(), c); err != nil {
				h.logger.Warn("failed to store payment link", "error", err, "client_id", c.ID)
			} else {
				c = updated
			}
		}
	}

	h.logger.Info("client created", "id", c.ID, "name", c.Name)
	writeJSON(w, http.StatusCreated, clientResponse{Client: c, EffectiveStatus: c.EffectiveStatus(h.now())})
}

// GetClient handles GET /clients/{id} requests. The status in the response
// is recomputed on every read so an expired window reads as overdue.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing client id", http.StatusBadRequest)
		return
	}

	c, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load client", "error", err, "client_id", id)
		http.Error(w, "failed to load client", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, clientResponse{Client: c, EffectiveStatus: c.EffectiveStatus(h.now())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
