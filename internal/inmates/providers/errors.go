package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"inmates/internal/inmates/models"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorCanceled indicates the caller abandoned the lookup
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorBadData indicates the provider returned invalid/malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorContractMismatch indicates the site changed its markup or payload
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorInvalidQuery indicates the provider rejected the query itself
	ErrorInvalidQuery ErrorCategory = "invalid_query"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// FetchError wraps an adapter failure with normalized categorization. The
// coordinator turns it into an in-band models.ProviderError.
type FetchError struct {
	Category     ErrorCategory
	Jurisdiction models.Jurisdiction
	Message      string
	Underlying   error
	Retryable    bool
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Jurisdiction, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Jurisdiction, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *FetchError) Unwrap() error {
	return e.Underlying
}

// NewFetchError creates a new normalized fetch error
func NewFetchError(category ErrorCategory, j models.Jurisdiction, message string, underlying error) *FetchError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &FetchError{
		Category:     category,
		Jurisdiction: j,
		Message:      message,
		Underlying:   underlying,
		Retryable:    retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ErrorInternal
}

// httpStatuser is satisfied by transport errors that carry a response status.
type httpStatuser interface {
	HTTPStatus() int
}

// Classify maps a transport or decoding failure onto the taxonomy. A
// *FetchError passes through unchanged.
func Classify(j models.Jurisdiction, err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewFetchError(ErrorCanceled, j, "lookup canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewFetchError(ErrorTimeout, j, "request timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFetchError(ErrorTimeout, j, "request timed out", err)
	}

	var status httpStatuser
	if errors.As(err, &status) {
		code := status.HTTPStatus()
		switch {
		case code == http.StatusTooManyRequests:
			return NewFetchError(ErrorRateLimited, j, "rate limited by source", err)
		case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
			return NewFetchError(ErrorInvalidQuery, j, "source rejected the query", err)
		case code >= 500:
			return NewFetchError(ErrorProviderOutage, j, "source unavailable", err)
		default:
			return NewFetchError(ErrorContractMismatch, j, fmt.Sprintf("unexpected status %d", code), err)
		}
	}

	if netErr != nil {
		return NewFetchError(ErrorProviderOutage, j, "error connecting to source", err)
	}
	return NewFetchError(ErrorInternal, j, "lookup failed", err)
}
