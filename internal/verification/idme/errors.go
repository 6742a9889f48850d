package idme

import (
	"errors"
	"fmt"

	dErrors "lifenavigator/pkg/domain-errors"
)

// ErrorCategory is the normalized failure taxonomy for provider calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError wraps a failed ID.me call.
type ProviderError struct {
	Category   ErrorCategory
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("idme %s [%s]: %s: %v", e.Operation, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("idme %s [%s]: %s", e.Operation, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func newProviderError(category ErrorCategory, op, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		Operation:  op,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorProviderOutage || category == ErrorRateLimited,
	}
}

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = newProviderError(ErrorProviderOutage, "call", "provider circuit open", nil)

func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// ToDomain maps a provider failure onto the domain error codes handlers understand.
func ToDomain(err error) error {
	switch GetCategory(err) {
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "verification provider timed out")
	case ErrorProviderOutage, ErrorRateLimited:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "verification provider unavailable")
	case ErrorAuthentication:
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "verification was not authorized")
	case ErrorBadData:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "verification provider returned unusable data")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
	}
}
