package appraisal

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// ErrStageInProgress is returned when a stage is requested while another runs.
var ErrStageInProgress = errors.New("a stage is already running")

// StageError is the single, user-facing failure of a stage run.
type StageError struct {
	Stage   domain.Stage
	Message string
	Err     error
}

func (e *StageError) Error() string { return e.Message }

// Unwrap returns the underlying failure.
func (e *StageError) Unwrap() error { return e.Err }

// Type classifies the underlying failure.
func (e *StageError) Type() llmerrors.ErrorType { return llmerrors.Classify(e.Err) }

// NewStageError labels err with the stage that produced it.
func NewStageError(stage domain.Stage, err error) *StageError {
	label := stageLabel(stage)
	msg := fmt.Sprintf("%s failed: %v", label, err)
	if llmerrors.IsCancellation(err) {
		msg = label + " was cancelled."
	}
	return &StageError{Stage: stage, Message: msg, Err: err}
}

func stageLabel(stage domain.Stage) string {
	switch stage {
	case domain.StageDigestPending:
		return "Digest generation"
	case domain.StageDomainsPending:
		return "Domain evaluation"
	case domain.StageOverallPending:
		return "Overall assessment"
	default:
		return "Stage " + stage.String()
	}
}

func outOfOrder(want, have domain.Stage) error {
	return &llmerrors.ConfigurationError{
		Setting: "stage",
		Message: fmt.Sprintf("%s requires stage %s, current stage is %s", stageLabel(want), want, have),
	}
}
