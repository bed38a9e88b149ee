package appraisal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ahrav/go-appraise/internal/document"
	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/parallel"
	"github.com/ahrav/go-appraise/internal/prompts"
	"github.com/ahrav/go-appraise/internal/search"
	"github.com/ahrav/go-appraise/pkg/events"
)

// Event types emitted by the orchestrator.
const (
	EventStageStarted    = "appraisal.stage_started"
	EventDomainEvaluated = "appraisal.domain_evaluated"
	EventStageCompleted  = "appraisal.stage_completed"
	EventStageFailed     = "appraisal.stage_failed"

	eventSource = "orchestrator"
)

// SearcherFactory builds the search capability over a loaded document.
type SearcherFactory func(pages []document.Page) search.Searcher

// DefaultSearcherFactory indexes pages with search.NewIndex.
func DefaultSearcherFactory(pages []document.Page) search.Searcher {
	return search.NewIndex(pages)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithEventSink sets the progress event sink.
func WithEventSink(sink events.EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithSearcherFactory replaces the default in-memory index.
func WithSearcherFactory(f SearcherFactory) Option {
	return func(o *Orchestrator) { o.newSearcher = f }
}

// WithConcurrency bounds in-flight domain evaluations.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSessionID fixes the session identifier instead of a random UUID.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

// Orchestrator owns one appraisal session. Each stage is an explicit call
// and stages advance strictly in order. At most one stage runs at a time; it
// can be aborted with Cancel.
type Orchestrator struct {
	stages      *Stages
	sink        events.EventSink
	newSearcher SearcherFactory
	concurrency int
	logger      *slog.Logger
	sessionID   string

	session *domain.Session

	mu        sync.Mutex
	stage     domain.Stage
	running   bool
	cancel    context.CancelFunc
	lastErr   *StageError
	pages     []document.Page
	searcher  search.Searcher
	pageCount int
}

// NewOrchestrator creates an orchestrator awaiting a document.
func NewOrchestrator(stages *Stages, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:      stages,
		sink:        events.NewNoOpEventSink(),
		newSearcher: DefaultSearcherFactory,
		concurrency: 2,
		logger:      slog.Default(),
		stage:       domain.StageAwaitingDocument,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.session = domain.NewSession(o.sessionID)
	return o
}

// LoadDocument indexes the pages and starts a fresh session for them. It is
// accepted in any stage unless a stage is running.
func (o *Orchestrator) LoadDocument(pages []document.Page) error {
	if len(pages) == 0 {
		return llmerrors.NewValidationError("document", "contains no pages", nil)
	}
	searcher := o.newSearcher(pages)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrStageInProgress
	}
	o.pages = pages
	o.pageCount = len(pages)
	o.searcher = searcher
	o.lastErr = nil
	o.session.Reset()
	o.stage = domain.StageDigestPending

	o.logger.Info("document loaded", "session_id", o.session.ID(), "pages", len(pages))
	return nil
}

// GenerateDigest runs the digest stage.
func (o *Orchestrator) GenerateDigest(ctx context.Context) error {
	ctx, pages, err := o.begin(ctx, domain.StageDigestPending, nil)
	if err != nil {
		return err
	}

	digest, err := o.stages.Digest(ctx, pages)
	if err == nil {
		o.session.SetDigest(digest)
	}
	return o.finish(ctx, domain.StageDigestPending, err)
}

// EvaluateDomains scores all six domains, at most Concurrency at a time.
// Results that completed before a failure or cancellation stay in the session.
func (o *Orchestrator) EvaluateDomains(ctx context.Context) error {
	var digest map[string]any
	ctx, _, err := o.begin(ctx, domain.StageDomainsPending, func() error {
		if digest = o.session.Digest(); digest == nil {
			return &llmerrors.ConfigurationError{Setting: "digest", Err: llmerrors.ErrMissingDigest}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.session.ResetDomains()
	o.mu.Lock()
	searcher := o.searcher
	o.mu.Unlock()

	domains := o.stages.Pack().DomainsInOrder()
	_, err = parallel.RunBounded(ctx, domains, o.concurrency,
		func(ctx context.Context, _ int, d prompts.DomainConfig) (struct{}, error) {
			if err := ctx.Err(); err != nil {
				return struct{}{}, &llmerrors.CancellationError{Op: "domain " + d.Name, Err: err}
			}

			result, err := o.stages.EvaluateDomain(ctx, d, digest, o.stages.Evidence(searcher, d))
			if err != nil {
				return struct{}{}, err
			}
			o.session.PutDomain(d.ID, result)
			o.emit(ctx, EventDomainEvaluated, map[string]any{
				"domain":           int(d.ID),
				"name":             d.Name,
				"calculated_score": result.CalculatedScore,
			})
			return struct{}{}, nil
		})
	return o.finish(ctx, domain.StageDomainsPending, err)
}

// AssessOverall runs the final stage over the stored domain results.
func (o *Orchestrator) AssessOverall(ctx context.Context) error {
	ctx, _, err := o.begin(ctx, domain.StageOverallPending, nil)
	if err != nil {
		return err
	}

	overall, err := o.stages.Overall(ctx, o.session.Domains())
	if err == nil {
		o.session.SetOverall(overall)
	}
	return o.finish(ctx, domain.StageOverallPending, err)
}

// Cancel aborts the running stage, if any. It reports whether a stage was running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Stage returns the current stage.
func (o *Orchestrator) Stage() domain.Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Running reports whether a stage is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// PageCount returns the number of pages of the loaded document.
func (o *Orchestrator) PageCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pageCount
}

// LastError returns the failure of the most recent stage run, cleared when
// the next run starts.
func (o *Orchestrator) LastError() *StageError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Snapshot returns a copy of the session.
func (o *Orchestrator) Snapshot() domain.SessionSnapshot {
	return o.session.Snapshot()
}

// begin claims the stage slot. It fails with ErrStageInProgress while another
// stage runs, with the precondition's error, and with a ConfigurationError
// when want is not the current stage.
func (o *Orchestrator) begin(ctx context.Context, want domain.Stage, precondition func() error) (context.Context, []document.Page, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, nil, ErrStageInProgress
	}
	if precondition != nil {
		if err := precondition(); err != nil {
			o.mu.Unlock()
			return nil, nil, err
		}
	}
	if o.stage != want {
		o.mu.Unlock()
		return nil, nil, outOfOrder(want, o.stage)
	}

	stageCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.lastErr = nil
	pages := o.pages
	o.mu.Unlock()

	o.logger.Info("stage started", "session_id", o.session.ID(), "stage", want.String())
	o.emit(stageCtx, EventStageStarted, map[string]any{"stage": want.String()})
	return stageCtx, pages, nil
}

// finish releases the stage slot, advancing on success and recording the
// failure otherwise. The returned error is the StageError, or nil.
func (o *Orchestrator) finish(ctx context.Context, stage domain.Stage, err error) error {
	if err == nil && ctx.Err() != nil {
		err = &llmerrors.CancellationError{Op: stage.String(), Err: ctx.Err()}
	}

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.running = false
	o.cancel = nil

	var stageErr *StageError
	if err != nil {
		stageErr = NewStageError(stage, err)
		o.lastErr = stageErr
	} else {
		o.stage = stage.Next()
	}
	next := o.stage
	o.mu.Unlock()

	// Events are sent on a fresh context so a cancelled stage still reports.
	evCtx := context.WithoutCancel(ctx)
	if stageErr != nil {
		o.logger.Warn("stage failed",
			"session_id", o.session.ID(),
			"stage", stage.String(),
			"error_type", string(stageErr.Type()),
			"error", err)
		o.emit(evCtx, EventStageFailed, map[string]any{
			"stage":      stage.String(),
			"error":      stageErr.Message,
			"error_type": string(stageErr.Type()),
		})
		return stageErr
	}

	o.logger.Info("stage completed", "session_id", o.session.ID(), "stage", stage.String(), "next", next.String())
	o.emit(evCtx, EventStageCompleted, map[string]any{"stage": stage.String(), "next": next.String()})
	return nil
}

// emit sends a best-effort progress event.
func (o *Orchestrator) emit(ctx context.Context, eventType string, payload any) {
	env, err := events.NewEnvelope(eventType, eventSource, o.session.ID(), payload)
	if err != nil {
		o.logger.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := o.sink.Append(ctx, env); err != nil {
		o.logger.Warn("failed to emit event", "event_type", eventType, "error", err)
	}
}
