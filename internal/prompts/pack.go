// Package prompts holds the appraisal prompt pack: the system, digest and
// overall prompts, the six domain configurations, recommended sampling and
// the evidence limits. The pack is static data; an embedded default ships
// with the binary and a YAML file can replace it.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

//go:embed default_pack.yaml
var defaultPackYAML []byte

// Placeholders replaced at render time. Each is replaced once.
const (
	DigestPlaceholder        = `<DIGEST>{...domain-relevant fields only...}</DIGEST>`
	EvidencePlaceholder      = `<EVIDENCE>[{"snippet":"...", "pages":[...]}]</EVIDENCE>`
	DocumentPlaceholder      = `<DOCUMENT>...</DOCUMENT>`
	DomainResultsPlaceholder = `<DOMAIN_RESULTS>...</DOMAIN_RESULTS>`
)

// Pack is a complete prompt pack.
type Pack struct {
	Metadata     Metadata      `yaml:"metadata" json:"metadata"`
	Settings     ModelSettings `yaml:"recommended_model_settings" json:"recommended_model_settings"`
	Limits       Limits        `yaml:"limits" json:"limits"`
	Search       SearchOptions `yaml:"search" json:"search"`
	DigestFields []string      `yaml:"digest_fields" json:"digest_fields"`
	Prompts      Prompts       `yaml:"prompts" json:"prompts"`
}

// Metadata identifies the pack in reports.
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Instrument  string `yaml:"instrument" json:"instrument"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// ModelSettings are the recommended sampling parameters.
type ModelSettings struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopP        float64 `yaml:"top_p" json:"top_p"`
}

// Limits bound how much text reaches a prompt.
type Limits struct {
	DigestChars   int `yaml:"digest_chars" json:"digest_chars"`
	SnippetChars  int `yaml:"snippet_chars" json:"snippet_chars"`
	EvidenceCount int `yaml:"evidence_count" json:"evidence_count"`
}

// SearchOptions are passed to the search capability for domain evidence.
type SearchOptions struct {
	Fuzzy  float64 `yaml:"fuzzy" json:"fuzzy"`
	Prefix bool    `yaml:"prefix" json:"prefix"`
}

// Prompts groups the templates.
type Prompts struct {
	System  string         `yaml:"system_prompt" json:"system_prompt"`
	Digest  string         `yaml:"digest_prompt" json:"digest_prompt"`
	Overall string         `yaml:"overall_prompt" json:"overall_prompt"`
	Domains []DomainConfig `yaml:"domain_prompts" json:"domain_prompts"`
}

// DomainConfig describes one domain evaluation.
type DomainConfig struct {
	ID       domain.DomainID `yaml:"domain" json:"domain"`
	Name     string          `yaml:"name" json:"name"`
	Items    []int           `yaml:"items" json:"items"`
	Keywords string          `yaml:"keywords" json:"keywords"`
	Prompt   string          `yaml:"prompt" json:"prompt"`

	// DigestFields narrows the digest slice for this domain. Empty means the
	// pack-level DigestFields.
	DigestFields []string `yaml:"digest_fields,omitempty" json:"digest_fields,omitempty"`
}

// Default returns the embedded pack.
func Default() (*Pack, error) {
	return Parse(bytes.NewReader(defaultPackYAML))
}

// MustDefault is Default for callers that treat a broken embedded pack as a
// programming error.
func MustDefault() *Pack {
	p, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded prompt pack is invalid: %v", err))
	}
	return p
}

// Load reads a pack file, or returns the embedded pack when path is empty.
func Load(path string) (*Pack, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &llmerrors.ConfigurationError{Setting: "prompt_pack", Message: path, Err: err}
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes and validates a YAML pack. Unknown keys are rejected.
func Parse(r io.Reader) (*Pack, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Pack
	if err := dec.Decode(&p); err != nil {
		return nil, &llmerrors.ConfigurationError{Setting: "prompt_pack", Message: "decode", Err: err}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the structural guarantees the orchestrator relies on: six
// domains with ids 1..6, items covering 1..23 exactly once, placeholders
// present and positive limits.
func (p *Pack) Validate() error {
	if len(p.Prompts.Domains) != domain.DomainCount {
		return packError("prompts.domain_prompts", fmt.Sprintf("expected %d domains, got %d", domain.DomainCount, len(p.Prompts.Domains)))
	}

	seenDomains := make(map[domain.DomainID]bool, domain.DomainCount)
	seenItems := make(map[int]bool, domain.MaxItemNumber)
	for i, d := range p.Prompts.Domains {
		field := fmt.Sprintf("prompts.domain_prompts[%d]", i)
		if !d.ID.Valid() || seenDomains[d.ID] {
			return packError(field+".domain", fmt.Sprintf("invalid or duplicate domain id %d", d.ID))
		}
		seenDomains[d.ID] = true

		if strings.TrimSpace(d.Name) == "" {
			return packError(field+".name", "must not be empty")
		}
		if len(d.Items) == 0 {
			return packError(field+".items", "must not be empty")
		}
		for _, item := range d.Items {
			if item < domain.MinItemNumber || item > domain.MaxItemNumber || seenItems[item] {
				return packError(field+".items", fmt.Sprintf("invalid or duplicate item %d", item))
			}
			seenItems[item] = true
		}
		if !strings.Contains(d.Prompt, DigestPlaceholder) || !strings.Contains(d.Prompt, EvidencePlaceholder) {
			return packError(field+".prompt", "must contain the digest and evidence placeholders")
		}
	}
	if len(seenItems) != domain.MaxItemNumber {
		return packError("prompts.domain_prompts", fmt.Sprintf("items cover %d of %d", len(seenItems), domain.MaxItemNumber))
	}

	if strings.TrimSpace(p.Prompts.System) == "" {
		return packError("prompts.system_prompt", "must not be empty")
	}
	if !strings.Contains(p.Prompts.Digest, DocumentPlaceholder) {
		return packError("prompts.digest_prompt", "must contain the document placeholder")
	}
	if !strings.Contains(p.Prompts.Overall, DomainResultsPlaceholder) {
		return packError("prompts.overall_prompt", "must contain the domain results placeholder")
	}
	if p.Limits.DigestChars <= 0 || p.Limits.SnippetChars <= 0 || p.Limits.EvidenceCount <= 0 {
		return packError("limits", "all limits must be positive")
	}
	if p.Search.Fuzzy < 0 || p.Search.Fuzzy >= 1 {
		return packError("search.fuzzy", "must be within [0, 1)")
	}
	return nil
}

// Domain returns the configuration for id.
func (p *Pack) Domain(id domain.DomainID) (DomainConfig, bool) {
	i := slices.IndexFunc(p.Prompts.Domains, func(d DomainConfig) bool { return d.ID == id })
	if i < 0 {
		return DomainConfig{}, false
	}
	return p.Prompts.Domains[i], true
}

// DomainsInOrder returns the domain configurations sorted by id.
func (p *Pack) DomainsInOrder() []DomainConfig {
	out := slices.Clone(p.Prompts.Domains)
	slices.SortFunc(out, func(a, b DomainConfig) int { return int(a.ID) - int(b.ID) })
	return out
}

// FieldsFor returns the digest fields sliced into d's prompt.
func (p *Pack) FieldsFor(d DomainConfig) []string {
	if len(d.DigestFields) > 0 {
		return d.DigestFields
	}
	return p.DigestFields
}

func packError(setting, msg string) error {
	return &llmerrors.ConfigurationError{Setting: setting, Message: msg}
}
