// Package activity implements the Temporal activities of the durable
// appraisal workflow. Each activity runs one stage call through
// appraisal.Stages and converts failures into application errors.
package activity

import (
	"context"
	"fmt"

	"github.com/ahrav/go-appraise/internal/appraisal"
	"github.com/ahrav/go-appraise/internal/document"
	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	base "github.com/ahrav/go-appraise/pkg/activity"
	"github.com/ahrav/go-appraise/pkg/events"
)

const eventSource = "activity"

// DigestInput is the GenerateDigest argument.
type DigestInput struct {
	SessionID string          `json:"session_id"`
	Pages     []document.Page `json:"pages"`
}

// DomainInput is the EvaluateDomain argument. The pages are re-indexed in the
// activity so evidence search runs on the worker.
type DomainInput struct {
	SessionID string          `json:"session_id"`
	Domain    domain.DomainID `json:"domain"`
	Pages     []document.Page `json:"pages"`
	Digest    map[string]any  `json:"digest"`
}

// OverallInput is the AssessOverall argument.
type OverallInput struct {
	SessionID string                                  `json:"session_id"`
	Domains   map[domain.DomainID]domain.DomainResult `json:"domains"`
}

// Activities runs appraisal stages inside Temporal activities.
type Activities struct {
	base.BaseActivities
	stages      *appraisal.Stages
	newSearcher appraisal.SearcherFactory
}

// NewActivities creates appraisal activities over the given stages.
func NewActivities(b base.BaseActivities, stages *appraisal.Stages) *Activities {
	return &Activities{
		BaseActivities: b,
		stages:         stages,
		newSearcher:    appraisal.DefaultSearcherFactory,
	}
}

// GenerateDigest produces the structured document digest.
func (a *Activities) GenerateDigest(ctx context.Context, in DigestInput) (map[string]any, error) {
	if len(in.Pages) == 0 {
		return nil, nonRetryable("GenerateDigest",
			llmerrors.NewValidationError("pages", "must not be empty", nil), "invalid input")
	}

	a.RecordHeartbeat(ctx, "digest")
	digest, err := a.stages.Digest(ctx, in.Pages)
	if err != nil {
		return nil, toApplicationError(err)
	}

	a.emit(ctx, in.SessionID, appraisal.EventStageCompleted, map[string]any{
		"stage": domain.StageDigestPending.String(),
	})
	return digest, nil
}

// EvaluateDomain scores one domain using evidence searched from the pages.
func (a *Activities) EvaluateDomain(ctx context.Context, in DomainInput) (domain.DomainResult, error) {
	if in.Digest == nil {
		return domain.DomainResult{}, nonRetryable("EvaluateDomain",
			&llmerrors.ConfigurationError{Setting: "digest", Err: llmerrors.ErrMissingDigest}, "invalid input")
	}
	cfg, ok := a.stages.Pack().Domain(in.Domain)
	if !ok {
		return domain.DomainResult{}, nonRetryable("EvaluateDomain",
			llmerrors.NewValidationError("domain", fmt.Sprintf("unknown domain %d", int(in.Domain)), nil), "invalid input")
	}

	a.RecordHeartbeat(ctx, in.Domain.String())
	evidence := a.stages.Evidence(a.newSearcher(in.Pages), cfg)
	result, err := a.stages.EvaluateDomain(ctx, cfg, in.Digest, evidence)
	if err != nil {
		return domain.DomainResult{}, toApplicationError(err)
	}

	a.emit(ctx, in.SessionID, appraisal.EventDomainEvaluated, map[string]any{
		"domain":           int(in.Domain),
		"name":             cfg.Name,
		"calculated_score": result.CalculatedScore,
	})
	return result, nil
}

// AssessOverall produces the final verdict from the domain results.
func (a *Activities) AssessOverall(ctx context.Context, in OverallInput) (domain.OverallAssessment, error) {
	a.RecordHeartbeat(ctx, "overall")
	overall, err := a.stages.Overall(ctx, in.Domains)
	if err != nil {
		return domain.OverallAssessment{}, toApplicationError(err)
	}

	a.emit(ctx, in.SessionID, appraisal.EventStageCompleted, map[string]any{
		"stage": domain.StageOverallPending.String(),
	})
	return overall, nil
}

func (a *Activities) emit(ctx context.Context, sessionID, eventType string, payload any) {
	env, err := events.NewEnvelope(eventType, eventSource, sessionID, payload)
	if err != nil {
		base.SafeLogError(ctx, "failed to build event", "event_type", eventType, "error", err)
		return
	}
	a.EmitEventSafe(ctx, env, eventType)
}
