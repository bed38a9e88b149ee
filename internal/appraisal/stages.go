// Package appraisal drives a document through the three appraisal stages:
// digest, per-domain evaluation and overall assessment. Stages holds the
// stateless stage functions; Orchestrator adds the session, the stage
// machine, cancellation and progress events on top of them.
package appraisal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-appraise/internal/document"
	"github.com/ahrav/go-appraise/internal/domain"
	"github.com/ahrav/go-appraise/internal/llm"
	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/transport"
	"github.com/ahrav/go-appraise/internal/prompts"
	"github.com/ahrav/go-appraise/internal/search"
	"github.com/ahrav/go-appraise/internal/validation"
)

// Stages runs single stage calls against a generation client.
type Stages struct {
	client   llm.Client
	pack     *prompts.Pack
	vendor   transport.Vendor
	sampling configuration.SamplingConfig
	logger   *slog.Logger
}

// NewStages binds a client and prompt pack. Vendor and sampling overrides
// come from cfg; a nil cfg uses the client's default vendor and the pack's
// recommended sampling.
func NewStages(client llm.Client, pack *prompts.Pack, cfg *configuration.Config, logger *slog.Logger) (*Stages, error) {
	if client == nil {
		return nil, fmt.Errorf("appraisal stages require a generation client")
	}
	if pack == nil {
		return nil, fmt.Errorf("appraisal stages require a prompt pack")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stages{client: client, pack: pack, logger: logger.With("component", "stages")}
	if cfg != nil {
		vendor, err := transport.ParseVendor(cfg.Vendor)
		if err != nil {
			return nil, err
		}
		s.vendor = vendor
		s.sampling = cfg.Sampling
	}
	return s, nil
}

// Pack returns the prompt pack the stages render from.
func (s *Stages) Pack() *prompts.Pack { return s.pack }

// request builds a generation request carrying the system prompt and the
// effective sampling settings.
func (s *Stages) request(user string) *transport.Request {
	req := &transport.Request{
		Vendor:       s.vendor,
		SystemPrompt: s.pack.Prompts.System,
		UserPrompt:   user,
		Temperature:  s.pack.Settings.Temperature,
		TopP:         s.pack.Settings.TopP,
	}
	if t := s.sampling.Temperature; t != nil {
		req.Temperature = *t
	}
	if p := s.sampling.TopP; p != nil {
		req.TopP = *p
	}
	return req
}

// Digest asks the model for a structured digest of the document. The page
// text is capped at the pack's digest budget.
func (s *Stages) Digest(ctx context.Context, pages []document.Page) (map[string]any, error) {
	text, truncated := document.Join(pages, s.pack.Limits.DigestChars)
	if truncated {
		s.logger.WarnContext(ctx, "document truncated for digest",
			"pages", len(pages),
			"limit_chars", s.pack.Limits.DigestChars)
	}
	return llm.GenerateStructured(ctx, s.client, s.request(s.pack.RenderDigest(text)), validation.Digest)
}

// Evidence looks up the domain's keywords and returns the top snippets,
// each cut to the pack's snippet budget.
func (s *Stages) Evidence(searcher search.Searcher, d prompts.DomainConfig) []prompts.Evidence {
	if searcher == nil {
		return []prompts.Evidence{}
	}
	results := searcher.Search(d.Keywords, search.Options{
		Fuzzy:  s.pack.Search.Fuzzy,
		Prefix: s.pack.Search.Prefix,
	})
	if len(results) > s.pack.Limits.EvidenceCount {
		results = results[:s.pack.Limits.EvidenceCount]
	}

	evidence := make([]prompts.Evidence, 0, len(results))
	for _, r := range results {
		evidence = append(evidence, prompts.Evidence{
			Snippet: truncateRunes(r.Text, s.pack.Limits.SnippetChars),
			Pages:   []int{r.Page},
		})
	}
	return evidence
}

// EvaluateDomain scores one domain from the digest and evidence and derives
// its calculated score.
func (s *Stages) EvaluateDomain(
	ctx context.Context,
	d prompts.DomainConfig,
	digest map[string]any,
	evidence []prompts.Evidence,
) (domain.DomainResult, error) {
	prompt, err := s.pack.RenderDomain(d, digest, evidence)
	if err != nil {
		return domain.DomainResult{}, fmt.Errorf("failed to render domain %d prompt: %w", d.ID, err)
	}

	items, err := llm.GenerateStructured(ctx, s.client, s.request(prompt), validation.DomainItems)
	if err != nil {
		return domain.DomainResult{}, err
	}
	return domain.NewDomainResult(d.Name, items), nil
}

// Overall asks for the final verdict given every stored domain result.
func (s *Stages) Overall(ctx context.Context, results map[domain.DomainID]domain.DomainResult) (domain.OverallAssessment, error) {
	prompt, err := s.pack.RenderOverall(results)
	if err != nil {
		return domain.OverallAssessment{}, fmt.Errorf("failed to render overall prompt: %w", err)
	}
	return llm.GenerateStructured(ctx, s.client, s.request(prompt), validation.Overall)
}

// truncateRunes keeps the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
