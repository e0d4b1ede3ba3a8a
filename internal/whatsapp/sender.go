package whatsapp

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reminders"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

var sendTracer = otel.Tracer("remindly.internal.whatsapp.send")

const defaultGraphBaseURL = "https://graph.facebook.com/v18.0"

// alertSink receives operator alerts for failures that need a human, such as
// a WhatsApp number the API permanently rejects.
type alertSink interface {
	Alert(ctx context.Context, subject, body string) error
}

// Sender delivers reminder messages through the WhatsApp Cloud API.
type Sender struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	countryCode   string
	template      string
	httpClient    *http.Client
	alerts        alertSink
	logger        *logging.Logger

	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// NewSender builds a WhatsApp Cloud API sender.
func NewSender(phoneNumberID, accessToken, countryCode string, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		baseURL:       defaultGraphBaseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		countryCode:   countryCode,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:      logger,
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
		now:         time.Now,
	}
}

// WithBaseURL overrides the Graph API base, for tests and API upgrades.
func (s *Sender) WithBaseURL(url string) *Sender {
	if url != "" {
		s.baseURL = strings.TrimRight(url, "/")
	}
	return s
}

// WithTemplate sets the reminder template; empty keeps the generated body.
func (s *Sender) WithTemplate(template string) *Sender {
	s.template = template
	return s
}

// WithRetry overrides the transient-failure retry policy.
func (s *Sender) WithRetry(maxAttempts int, delay time.Duration) *Sender {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if delay >= 0 {
		s.retryDelay = delay
	}
	return s
}

// WithAlerts attaches an operator alert sink.
func (s *Sender) WithAlerts(sink alertSink) *Sender {
	s.alerts = sink
	return s
}

var _ reminders.Dispatcher = (*Sender)(nil)

type textMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// permanentError marks a rejection that no retry will fix.
type permanentError struct {
	status int
	msg    string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("whatsapp: permanent rejection (status %d): %s", e.status, e.msg)
}

// SendReminder delivers one reminder, retrying transient failures with a
// fixed delay. Client errors from the API are permanent: they fail the job
// after a single attempt and raise an operator alert.
func (s *Sender) SendReminder(ctx context.Context, c *clients.Client, offsetLabel string) (reminders.SendReceipt, error) {
	if s.accessToken == "" || s.phoneNumberID == "" {
		return reminders.SendReceipt{}, errors.New("whatsapp: sender not configured")
	}

	to := FormatPhone(c.Phone, s.countryCode)
	if to == "" {
		return reminders.SendReceipt{Attempts: 1}, fmt.Errorf("whatsapp: client %s has no dialable phone", c.ID)
	}
	body := reminderBody(c, s.template, s.now())

	ctx, span := sendTracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("remindly.client_id", c.ID),
		attribute.String("remindly.offset", offsetLabel),
	)

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return reminders.SendReceipt{Attempts: attempt - 1}, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		msgID, err := s.post(ctx, to, body)
		if err == nil {
			s.logger.Info("whatsapp reminder sent",
				"client_id", c.ID, "to", to, "offset", offsetLabel, "message_id", msgID, "attempts", attempt)
			return reminders.SendReceipt{MessageID: msgID, Attempts: attempt}, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			span.RecordError(err)
			s.alert(ctx, c, perm)
			return reminders.SendReceipt{Attempts: attempt}, err
		}
		s.logger.Warn("whatsapp send attempt failed",
			"client_id", c.ID, "attempt", attempt, "error", err)
	}

	span.RecordError(lastErr)
	s.logger.Error("whatsapp reminder exhausted retries",
		"client_id", c.ID, "to", to, "attempts", s.maxAttempts, "error", lastErr)
	return reminders.SendReceipt{Attempts: s.maxAttempts}, lastErr
}

func (s *Sender) post(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textPayload{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(parsed.Messages) > 0 {
			return parsed.Messages[0].ID, nil
		}
		return "", nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		msg := parsed.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &permanentError{status: resp.StatusCode, msg: msg}
	default:
		return "", fmt.Errorf("whatsapp: send failed: status %d", resp.StatusCode)
	}
}

func (s *Sender) alert(ctx context.Context, c *clients.Client, perm *permanentError) {
	if s.alerts == nil {
		return
	}
	subject := fmt.Sprintf("WhatsApp reminder rejected for %s", c.Name)
	body := fmt.Sprintf("Reminder to client %s (%s) was rejected and will not be retried.\n\n%s",
		c.Name, c.Phone, perm.Error())
	if err := s.alerts.Alert(ctx, subject, body); err != nil {
		s.logger.Error("operator alert failed", "error", err, "client_id", c.ID)
	}
}
