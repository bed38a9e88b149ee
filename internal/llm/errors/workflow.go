package errors

import (
	"errors"
	"fmt"
)

// WorkflowError carries a classified failure across the Temporal activity
// boundary, where only the message, type string and retry flag survive.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

// ClassifyForWorkflow converts any generation failure into a WorkflowError.
// Only transport failures are retryable; the details map records the field
// and constraint for validation failures and the status for transport ones.
func ClassifyForWorkflow(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	kind := Classify(err)
	wfErr := &WorkflowError{
		Type:      kind,
		Message:   err.Error(),
		Retryable: kind == ErrorTypeTransport,
		Cause:     err,
	}

	var valErr *ValidationError
	var transportErr *TransportError
	switch {
	case errors.As(err, &valErr):
		wfErr.Details = map[string]any{
			"field":      valErr.Field,
			"constraint": valErr.Constraint,
		}
	case errors.As(err, &transportErr):
		wfErr.Details = map[string]any{
			"vendor":      transportErr.Vendor,
			"status_code": transportErr.StatusCode,
		}
	}
	return wfErr
}
