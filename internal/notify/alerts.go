package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// AlertSink delivers operator alerts. Implementations can be swapped
// (SendGrid, log-only) without changing callers.
type AlertSink interface {
	Alert(ctx context.Context, subject, body string) error
}

// EmailAlerter sends operator alerts as email via SendGrid.
type EmailAlerter struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	toEmail   string
	logger    *logging.Logger
}

// EmailConfig holds SendGrid alert configuration.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// NewEmailAlerter creates a SendGrid-backed alert sink. Returns nil when no
// API key or recipient is configured; callers fall back to log-only alerts.
func NewEmailAlerter(cfg EmailConfig, logger *logging.Logger) *EmailAlerter {
	if cfg.APIKey == "" || cfg.ToEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Remindly"
	}
	return &EmailAlerter{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		toEmail:   cfg.ToEmail,
		logger:    logger,
	}
}

// Alert sends one alert email.
func (a *EmailAlerter) Alert(ctx context.Context, subject, body string) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(a.fromName, a.fromEmail)
	to := mail.NewEmail("", a.toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	response, err := a.client.SendWithContext(ctx, message)
	if err != nil {
		a.logger.Error("sendgrid alert failed", "error", err, "subject", subject)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		a.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	a.logger.Info("operator alert sent", "subject", subject, "status", response.StatusCode)
	return nil
}

// LogAlerter records alerts in the log only, for deployments without email.
type LogAlerter struct {
	logger *logging.Logger
}

// NewLogAlerter creates a log-only alert sink.
func NewLogAlerter(logger *logging.Logger) *LogAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogAlerter{logger: logger}
}

// Alert logs the alert without sending anything.
func (a *LogAlerter) Alert(_ context.Context, subject, body string) error {
	a.logger.Warn("operator alert", "subject", subject, "body", body)
	return nil
}
