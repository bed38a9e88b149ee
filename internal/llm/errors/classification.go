package errors

import (
	"context"
	"errors"
)

// Classify maps an error chain onto the taxonomy. Cancellation wins over every
// other kind because a cancelled call must never be retried or reported as a
// model failure.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	if IsCancellation(err) {
		return ErrorTypeCancellation
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return ErrorTypeConfiguration
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ErrorTypeValidation
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrorTypeParse
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorTypeTransport
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransport
	}
	return ErrorTypeUnknown
}

// IsCancellation reports whether err stems from a cooperative abort.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsRetryable reports whether err is a transient transport failure.
func IsRetryable(err error) bool {
	return Classify(err) == ErrorTypeTransport
}
