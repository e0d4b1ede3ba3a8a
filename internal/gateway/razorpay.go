package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

const (
	defaultBaseURL = "https://api.razorpay.com/v1"
	defaultTimeout = 20 * time.Second
)

// ErrLinkNotFound is returned when the gateway has no link with the given id.
var ErrLinkNotFound = errors.New("gateway: payment link not found")

// Client talks to the Razorpay REST API with basic auth on every call.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a Razorpay client from API credentials.
func NewClient(keyID, keySecret string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// WithBaseURL overrides the API base, for tests.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}
	return c
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// PaymentLink is the subset of Razorpay's payment link entity this service
// reads.
type PaymentLink struct {
	ID         string `json:"id"`
	ShortURL   string `json:"short_url"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
}

// CreateLinkParams describes the hosted link to create. Amount is in paise.
type CreateLinkParams struct {
	ClientID    string
	Name        string
	Phone       string
	AmountPaise int64
	Description string
}

// CreatePaymentLink creates a hosted payment link carrying the client id in
// its notes, so the paid webhook correlates back to the record.
func (c *Client) CreatePaymentLink(ctx context.Context, p CreateLinkParams) (*PaymentLink, error) {
	if p.AmountPaise <= 0 {
		return nil, errors.New("gateway: amount must be positive")
	}
	description := p.Description
	if description == "" {
		description = fmt.Sprintf("Payment due from %s", p.Name)
	}

	body := map[string]any{
		"amount":      p.AmountPaise,
		"currency":    "INR",
		"description": description,
		"customer": map[string]string{
			"name":    p.Name,
			"contact": contactPhone(p.Phone),
		},
		"notify": map[string]bool{"sms": false, "email": false},
		"notes":  map[string]string{"client_id": p.ClientID},
	}

	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, "/payment_links", body, &link); err != nil {
		return nil, err
	}
	c.logger.Info("payment link created", "client_id", p.ClientID, "link_id", link.ID)
	return &link, nil
}

// GetPaymentLink fetches a link's current state, for manual reconciliation.
func (c *Client) GetPaymentLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	var link PaymentLink
	if err := c.do(ctx, http.MethodGet, "/payment_links/"+linkID, nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// CancelPaymentLink cancels an outstanding link so it can no longer be paid.
func (c *Client) CancelPaymentLink(ctx context.Context, linkID string) error {
	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, "/payment_links/"+linkID+"/cancel", nil, &link); err != nil {
		return err
	}
	c.logger.Info("payment link cancelled", "link_id", linkID, "status", link.Status)
	return nil
}

// ProvisionLink creates a link for a new client record and returns its short
// URL.
func (c *Client) ProvisionLink(ctx context.Context, clientID, name, phone string, amountPaise int64) (string, error) {
	link, err := c.CreatePaymentLink(ctx, CreateLinkParams{
		ClientID:    clientID,
		Name:        name,
		Phone:       phone,
		AmountPaise: amountPaise,
	})
	if err != nil {
		return "", err
	}
	return link.ShortURL, nil
}

// contactPhone reduces a stored phone number to the digits-only form the
// gateway accepts, prefixing the Indian country code for local numbers.
func contactPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		return "91" + digits
	}
	return digits
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.Configured() {
		return errors.New("gateway: razorpay credentials missing")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusNotFound {
		return ErrLinkNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("gateway: %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error.Description)
		}
		return fmt.Errorf("gateway: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}
