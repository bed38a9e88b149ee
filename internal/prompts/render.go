package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/go-appraise/internal/domain"
)

// Evidence is one search snippet handed to a domain prompt.
type Evidence struct {
	Snippet string `json:"snippet"`
	Pages   []int  `json:"pages"`
}

// RenderDomain fills a domain prompt with the digest slice and evidence.
// Digest fields absent from the digest are left out of the slice.
func (p *Pack) RenderDomain(d DomainConfig, digest map[string]any, evidence []Evidence) (string, error) {
	slice, err := digestSlice(digest, p.FieldsFor(d))
	if err != nil {
		return "", err
	}
	if evidence == nil {
		evidence = []Evidence{}
	}
	ev, err := indentJSON(evidence)
	if err != nil {
		return "", err
	}

	out := strings.Replace(d.Prompt, DigestPlaceholder, "<DIGEST>"+slice+"</DIGEST>", 1)
	out = strings.Replace(out, EvidencePlaceholder, "<EVIDENCE>"+ev+"</EVIDENCE>", 1)
	return out, nil
}

// RenderDigest fills the digest prompt with document text.
func (p *Pack) RenderDigest(documentText string) string {
	return strings.Replace(p.Prompts.Digest, DocumentPlaceholder, "<DOCUMENT>"+documentText+"</DOCUMENT>", 1)
}

// RenderOverall fills the overall prompt with the serialized domain results.
func (p *Pack) RenderOverall(results map[domain.DomainID]domain.DomainResult) (string, error) {
	body, err := indentJSON(results)
	if err != nil {
		return "", err
	}
	return strings.Replace(p.Prompts.Overall, DomainResultsPlaceholder, "<DOMAIN_RESULTS>"+body+"</DOMAIN_RESULTS>", 1), nil
}

// digestSlice serializes the selected fields in the given order, skipping
// any the digest does not carry.
func digestSlice(digest map[string]any, fields []string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	written := 0
	for _, f := range fields {
		v, ok := digest[f]
		if !ok {
			continue
		}
		val, err := indentJSON(v)
		if err != nil {
			return "", fmt.Errorf("digest field %s: %w", f, err)
		}
		if written > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(f)
		if err != nil {
			return "", err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(strings.ReplaceAll(val, "\n", "\n  "))
		written++
	}
	if written > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String(), nil
}

// indentJSON renders v with two-space indentation and without HTML escaping.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
