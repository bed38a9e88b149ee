package activity

import (
	"go.temporal.io/sdk/temporal"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// nonRetryable wraps an error as a Temporal non-retryable application error
// tagged with the activity name.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// toApplicationError converts a stage failure into a Temporal application
// error. The error type carries the taxonomy kind so the workflow can report
// it; only transport failures are left to Temporal's retry policy.
func toApplicationError(err error) error {
	wfErr := llmerrors.ClassifyForWorkflow(err)
	if wfErr == nil {
		return nil
	}
	var details []any
	if wfErr.Details != nil {
		details = append(details, wfErr.Details)
	}
	if wfErr.Retryable {
		return temporal.NewApplicationError(wfErr.Message, string(wfErr.Type), details...)
	}
	return temporal.NewNonRetryableApplicationError(wfErr.Message, string(wfErr.Type), nil, details...)
}
