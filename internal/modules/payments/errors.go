package payments

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrUnauthorized   = errors.New("invalid webhook secret")
	ErrNotConfigured  = errors.New("payment provider not configured")
	ErrOrderNotFound  = errors.New("order not found")
)

// GatewayError is a provider rejection. Message is the provider's human-readable reason.
type GatewayError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Message)
}

// GatewayMessage extracts the provider's message from err, or "" when there is none.
func GatewayMessage(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return ""
}
