package appraisal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-appraise/internal/domain"
	"github.com/ahrav/go-appraise/internal/llm"
	"github.com/ahrav/go-appraise/internal/llm/transport"
	"github.com/ahrav/go-appraise/internal/prompts"
)

// fakeClient answers generation calls from a responder and records requests.
type fakeClient struct {
	respond func(ctx context.Context, req *transport.Request) (string, error)

	mu       sync.Mutex
	requests []*transport.Request

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeClient) GenerateText(ctx context.Context, req *transport.Request) (string, error) {
	return f.call(ctx, req)
}

func (f *fakeClient) GenerateJSON(ctx context.Context, req *transport.Request, accept func(any) error) error {
	text, err := f.call(ctx, req)
	if err != nil {
		return err
	}
	v, err := llm.ParseJSON(text)
	if err != nil {
		return err
	}
	return accept(v)
}

func (f *fakeClient) call(ctx context.Context, req *transport.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	return f.respond(ctx, req)
}

func (f *fakeClient) recorded() []*transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transport.Request(nil), f.requests...)
}

// promptDomain reports which domain a domain prompt belongs to.
func promptDomain(user string) (domain.DomainID, bool) {
	for id := domain.DomainScopePurpose; id <= domain.DomainEditorialIndependence; id++ {
		if strings.Contains(user, fmt.Sprintf("Appraise Domain %d,", id)) {
			return id, true
		}
	}
	return 0, false
}

const (
	digestJSON  = `{"scope_purpose":{"objectives":"Reduce cardiovascular events"},"rigour":{"search":"MEDLINE"}}`
	overallJSON = "```json\n{\"overall_quality_1to7\": 5, \"recommend_use\": \"yes_with_modifications\", \"justification\": \"Solid methods.\"}\n```"
)

// itemsJSON scores every item of the domain with score.
func itemsJSON(pack *prompts.Pack, id domain.DomainID, score int) string {
	d, _ := pack.Domain(id)
	items := make([]map[string]any, 0, len(d.Items))
	for _, n := range d.Items {
		items = append(items, map[string]any{
			"item":               n,
			"score_1to7":         score,
			"confidence_0to100":  75,
			"evidence_citations": []map[string]any{{"page": 2, "section": nil}},
			"justification":      "Described on page 2.",
		})
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// happyResponder answers every stage successfully with all items scored 4.
func happyResponder(pack *prompts.Pack) func(context.Context, *transport.Request) (string, error) {
	return func(_ context.Context, req *transport.Request) (string, error) {
		switch {
		case strings.Contains(req.UserPrompt, "<DOCUMENT>"):
			return digestJSON, nil
		case strings.Contains(req.UserPrompt, "<DOMAIN_RESULTS>"):
			return overallJSON, nil
		}
		if id, ok := promptDomain(req.UserPrompt); ok {
			return itemsJSON(pack, id, 4), nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}
}
