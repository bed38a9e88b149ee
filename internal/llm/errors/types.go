// Package errors defines the failure taxonomy shared by the generation client,
// the validators and the appraisal orchestrator. Every failure that leaves the
// client is one of the typed errors below so callers can decide between retry,
// abort and user-facing reporting with errors.As.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes generation failures for retry and reporting decisions.
type ErrorType string

const (
	// ErrorTypeTransport indicates a network or non-success HTTP outcome (retryable).
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeCancellation indicates a cooperative abort (never retried).
	ErrorTypeCancellation ErrorType = "cancellation"

	// ErrorTypeParse indicates the model output is not valid JSON or the vendor
	// payload does not carry text where expected.
	ErrorTypeParse ErrorType = "parse"

	// ErrorTypeValidation indicates parsed JSON violates a structural or range contract.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeConfiguration indicates a missing credential, unsupported vendor or
	// unmet stage precondition. Raised before any network call.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common sentinels, wrapped by the typed errors below.
var (
	// ErrUnsupportedVendor indicates a vendor identifier with no adapter.
	ErrUnsupportedVendor = errors.New("unsupported vendor")

	// ErrMissingCredential indicates no API key was configured for a vendor.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMissingDigest indicates the domain stage was requested without a digest.
	ErrMissingDigest = errors.New("digest not available")

	// ErrNoItems indicates a domain response held no recognizable item list.
	ErrNoItems = errors.New("domain result is not a valid array of items or a recognized object structure")

	// ErrEmptyResponse indicates the vendor response held no text.
	ErrEmptyResponse = errors.New("empty vendor response")
)

// TransportError captures a network failure or a non-success HTTP response from
// a vendor. The raw response body is kept verbatim for diagnosis.
type TransportError struct {
	Vendor     string `json:"vendor"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
	Err        error  `json:"-"`
}

// Error reports the HTTP status and body, or the underlying network failure.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Vendor, e.Err)
	}
	return fmt.Sprintf("%s request failed", e.Vendor)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// CancellationError marks a cooperative abort. It is never retried.
type CancellationError struct {
	Op  string
	Err error
}

func (e *CancellationError) Error() string {
	if e.Op == "" {
		return "operation cancelled"
	}
	return e.Op + " cancelled"
}

// Unwrap returns the context error that triggered the cancellation.
func (e *CancellationError) Unwrap() error { return e.Err }

// ParseError reports model output that could not be decoded as JSON, or a
// vendor payload missing its text field.
type ParseError struct {
	Message string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := "failed to parse model output"
	if e.Message != "" {
		msg = e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError names the field and constraint a parsed value violated.
type ValidationError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Err        error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Constraint
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// Unwrap returns the wrapped sentinel, if any.
func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigurationError reports a setup problem detected before any network call.
type ConfigurationError struct {
	Setting string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, 3)
	if e.Setting != "" {
		parts = append(parts, e.Setting)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(parts, ": ")
}

// Unwrap returns the wrapped sentinel.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewValidationError is a shorthand for the common field/constraint pair.
func NewValidationError(field, constraint string, value any) *ValidationError {
	return &ValidationError{Field: field, Constraint: constraint, Value: value}
}
