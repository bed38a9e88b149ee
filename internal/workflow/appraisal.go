package workflow

import (
	"context"
	"errors"
	"maps"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-appraise/internal/activity"
	"github.com/ahrav/go-appraise/internal/appraisal"
	"github.com/ahrav/go-appraise/internal/document"
	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Signal and query names.
const (
	SignalAdvance = "advance"
	QuerySession  = "session"
)

// DefaultConcurrency bounds in-flight domain activities when the input
// leaves it unset.
const DefaultConcurrency = 2

const versionChangeID = "appraisal.v"

// AppraisalInput starts a workflow over an extracted document.
type AppraisalInput struct {
	SessionID   string          `json:"session_id"`
	Pages       []document.Page `json:"pages"`
	Concurrency int             `json:"concurrency,omitempty"`
}

// Status is the query result.
type Status struct {
	Stage     domain.Stage           `json:"stage"`
	Running   bool                   `json:"running"`
	LastError string                 `json:"last_error,omitempty"`
	ErrorType string                 `json:"error_type,omitempty"`
	Session   domain.SessionSnapshot `json:"session"`
}

// Activity method references; the receiver is never dereferenced.
var acts *activity.Activities

// AppraisalWorkflow runs digest, domain evaluation and overall assessment,
// each after an advance signal, and returns the completed session.
func AppraisalWorkflow(ctx workflow.Context, in AppraisalInput) (domain.SessionSnapshot, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, versionChangeID, workflow.DefaultVersion, currentVersion)

	if len(in.Pages) == 0 {
		return domain.SessionSnapshot{}, temporal.NewNonRetryableApplicationError(
			"invalid appraisal input",
			"Validation",
			llmerrors.NewValidationError("pages", "must not be empty", nil),
		)
	}
	if in.SessionID == "" {
		in.SessionID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if in.Concurrency <= 0 {
		in.Concurrency = DefaultConcurrency
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	st := &state{
		input:   in,
		stage:   domain.StageDigestPending,
		domains: make(map[domain.DomainID]domain.DomainResult),
	}
	if err := workflow.SetQueryHandler(ctx, QuerySession, func() (Status, error) {
		return st.status(), nil
	}); err != nil {
		return domain.SessionSnapshot{}, err
	}

	logger := workflow.GetLogger(ctx)
	advance := workflow.GetSignalChannel(ctx, SignalAdvance)

	for st.stage != domain.StageComplete {
		advance.Receive(ctx, nil)
		if err := ctx.Err(); err != nil {
			return st.snapshot(), err
		}

		stage := st.stage
		st.running = true
		err := st.run(ctx, stage)
		st.running = false

		// Signals that arrived mid-stage do not queue another stage.
		for advance.ReceiveAsync(nil) {
			logger.Warn("Ignored advance signal received while a stage was running", "stage", stage.String())
		}

		if err != nil {
			if ctx.Err() != nil {
				return st.snapshot(), ctx.Err()
			}
			st.lastError, st.errorType = stageFailure(stage, err)
			logger.Warn("Stage failed", "stage", stage.String(), "error", st.lastError)
			continue
		}
		st.lastError, st.errorType = "", ""
		st.stage = stage.Next()
		logger.Info("Stage completed", "stage", stage.String(), "next", st.stage.String())
	}

	return st.snapshot(), nil
}

// state is the workflow-local session. Workflow coroutines never run in
// parallel, so it needs no locking.
type state struct {
	input     AppraisalInput
	stage     domain.Stage
	running   bool
	lastError string
	errorType string

	digest  map[string]any
	domains map[domain.DomainID]domain.DomainResult
	overall *domain.OverallAssessment
}

func (s *state) run(ctx workflow.Context, stage domain.Stage) error {
	switch stage {
	case domain.StageDigestPending:
		var digest map[string]any
		err := workflow.ExecuteActivity(ctx, acts.GenerateDigest, activity.DigestInput{
			SessionID: s.input.SessionID,
			Pages:     s.input.Pages,
		}).Get(ctx, &digest)
		if err != nil {
			return err
		}
		s.digest = digest
		return nil

	case domain.StageDomainsPending:
		return s.evaluateDomains(ctx)

	case domain.StageOverallPending:
		var overall domain.OverallAssessment
		err := workflow.ExecuteActivity(ctx, acts.AssessOverall, activity.OverallInput{
			SessionID: s.input.SessionID,
			Domains:   s.domains,
		}).Get(ctx, &overall)
		if err != nil {
			return err
		}
		s.overall = &overall
		return nil

	default:
		return temporal.NewNonRetryableApplicationError("no stage to run", "Configuration", nil)
	}
}

// evaluateDomains runs the six domain activities behind a channel semaphore.
// The first failure cancels the rest; results that completed are kept.
func (s *state) evaluateDomains(ctx workflow.Context) error {
	s.domains = make(map[domain.DomainID]domain.DomainResult)

	runCtx, cancel := workflow.WithCancel(ctx)
	defer cancel()

	sem := workflow.NewBufferedChannel(runCtx, s.input.Concurrency)
	wg := workflow.NewWaitGroup(ctx)
	var firstErr error

	for id := domain.DomainScopePurpose; id <= domain.DomainEditorialIndependence; id++ {
		wg.Add(1)
		workflow.Go(runCtx, func(gctx workflow.Context) {
			defer wg.Done()
			sem.Send(gctx, struct{}{})
			defer sem.Receive(gctx, nil)

			if firstErr != nil || gctx.Err() != nil {
				return
			}

			var result domain.DomainResult
			err := workflow.ExecuteActivity(gctx, acts.EvaluateDomain, activity.DomainInput{
				SessionID: s.input.SessionID,
				Domain:    id,
				Pages:     s.input.Pages,
				Digest:    s.digest,
			}).Get(gctx, &result)
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			s.domains[id] = result
		})
	}
	wg.Wait(ctx)
	return firstErr
}

func (s *state) snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:      s.input.SessionID,
		Digest:  maps.Clone(s.digest),
		Domains: maps.Clone(s.domains),
	}
	if s.overall != nil {
		o := *s.overall
		snap.Overall = &o
	}
	return snap
}

func (s *state) status() Status {
	return Status{
		Stage:     s.stage,
		Running:   s.running,
		LastError: s.lastError,
		ErrorType: s.errorType,
		Session:   s.snapshot(),
	}
}

// stageFailure renders an activity failure the way the interactive
// orchestrator reports it and returns the failure kind.
func stageFailure(stage domain.Stage, err error) (string, string) {
	cause := err
	errType := ""

	var canceled *temporal.CanceledError
	var appErr *temporal.ApplicationError
	switch {
	case errors.As(err, &canceled):
		cause = &llmerrors.CancellationError{Op: stage.String(), Err: context.Canceled}
	case errors.As(err, &appErr):
		cause = errors.New(appErr.Error())
		errType = appErr.Type()
	}

	stageErr := appraisal.NewStageError(stage, cause)
	if errType == "" {
		errType = string(stageErr.Type())
	}
	return stageErr.Message, errType
}
