package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp Cloud API (outbound reminders)
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAPIBase       string

	// Razorpay (payment links + webhook intake)
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string

	// Live payment feed
	LiveFeedURL            string
	LiveFeedReconnectDelay time.Duration
	LiveFeedBuffer         int

	// Reminder scheduling
	ReminderOffsetsDays  []int
	ReminderTickInterval time.Duration
	ReminderTemplate     string

	// Dispatch retry policy
	DispatchMaxAttempts int
	DispatchRetryDelay  time.Duration

	// Unknown-client events get a short re-apply window before rejection.
	ReconcileRetryAttempts int
	ReconcileRetryDelay    time.Duration

	DefaultCountryCode string

	// Operator alerting
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	OperatorAlertEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIBase:       getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v18.0"),

		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		LiveFeedURL:            getEnv("LIVEFEED_URL", ""),
		LiveFeedReconnectDelay: getEnvAsDuration("LIVEFEED_RECONNECT_DELAY", 5*time.Second),
		LiveFeedBuffer:         getEnvAsInt("LIVEFEED_BUFFER", 256),

		ReminderOffsetsDays:  getEnvAsIntList("REMINDER_OFFSETS_DAYS", []int{3, 1, 0}),
		ReminderTickInterval: getEnvAsDuration("REMINDER_TICK_INTERVAL", time.Minute),
		ReminderTemplate:     getEnv("REMINDER_TEMPLATE", ""),

		DispatchMaxAttempts: getEnvAsInt("DISPATCH_MAX_ATTEMPTS", 3),
		DispatchRetryDelay:  getEnvAsDuration("DISPATCH_RETRY_DELAY", 2*time.Second),

		ReconcileRetryAttempts: getEnvAsInt("RECONCILE_RETRY_ATTEMPTS", 3),
		ReconcileRetryDelay:    getEnvAsDuration("RECONCILE_RETRY_DELAY", 2*time.Second),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),

		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "Remindly"),
		OperatorAlertEmail: getEnv("OPERATOR_ALERT_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration with a fallback
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsIntList parses a comma-separated list of integers with a fallback.
// A partially invalid list falls back entirely to the default.
func getEnvAsIntList(key string, defaultValue []int) []int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
