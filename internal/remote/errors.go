// Package remote holds the failure taxonomy shared by the terminology and
// identity-provider clients.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory is the normalized failure taxonomy for remote calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the service took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the service returned a payload we could not decode
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorOutage indicates the service is unavailable
	ErrorOutage ErrorCategory = "outage"

	ErrorNotFound    ErrorCategory = "not_found"
	ErrorRateLimited ErrorCategory = "rate_limited"
	ErrorInternal    ErrorCategory = "internal"
)

// ProviderError wraps a remote failure with a normalized category.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Status     int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromStatus maps a non-2xx HTTP status to a ProviderError.
func FromStatus(providerID string, status int, message string) *ProviderError {
	var category ErrorCategory
	switch {
	case status == http.StatusNotFound:
		category = ErrorNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = ErrorAuthentication
	case status == http.StatusTooManyRequests:
		category = ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = ErrorTimeout
	case status >= 500:
		category = ErrorOutage
	default:
		category = ErrorBadData
	}
	pe := NewProviderError(category, providerID, message, nil)
	pe.Status = status
	return pe
}

// FromTransport maps a transport-level failure (no HTTP response) to a ProviderError.
func FromTransport(providerID string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		pe := NewProviderError(ErrorInternal, providerID, "request canceled", err)
		return pe
	}
	return NewProviderError(ErrorOutage, providerID, "request failed", err)
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func IsNotFound(err error) bool {
	return GetCategory(err) == ErrorNotFound
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// RequestObserver records the outcome of each remote request.
type RequestObserver interface {
	ObserveRemoteRequest(service, outcome string)
}

// Outcome renders err as a metric label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(GetCategory(err))
}
