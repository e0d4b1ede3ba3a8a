package clients

import "errors"

var (
	// ErrClientNotFound is returned when a client record does not exist
	ErrClientNotFound = errors.New("client not found")

	// ErrVersionConflict is returned when an update targets a stale version
	ErrVersionConflict = errors.New("client version conflict")

	// ErrInvalidName is returned when the client name is missing
	ErrInvalidName = errors.New("name is required")

	// ErrInvalidPhone is returned when the phone number is missing
	ErrInvalidPhone = errors.New("phone is required")

	// ErrInvalidAmount is returned when the amount is not positive
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidWindow is returned when windowStart is not before windowEnd
	ErrInvalidWindow = errors.New("payment window start must precede end")

	// ErrNoPaymentOptions is returned when no payment channel is enabled
	ErrNoPaymentOptions = errors.New("at least one payment option is required")
)
