// Package report builds the single JSON artifact of a completed appraisal and
// checks it against an embedded JSON Schema before it is written.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ahrav/go-appraise/internal/domain"
)

//go:embed report.schema.json
var schemaJSON []byte

const schemaURL = "report.schema.json"

// Metadata describes how the report was produced.
type Metadata struct {
	SessionID         string `json:"session_id"`
	Instrument        string `json:"instrument"`
	PromptPackVersion string `json:"prompt_pack_version,omitempty"`
	Vendor            string `json:"vendor"`
	Model             string `json:"model,omitempty"`
	Source            string `json:"source,omitempty"`
	PageCount         int    `json:"page_count"`
}

// Document is the exported assessment.
type Document struct {
	Metadata    Metadata                                `json:"metadata"`
	GeneratedAt time.Time                               `json:"generated_at"`
	Digest      map[string]any                          `json:"digest"`
	Domains     map[domain.DomainID]domain.DomainResult `json:"domains"`
	Overall     *domain.OverallAssessment               `json:"overall"`
}

// Build assembles a report from a session snapshot.
func Build(snap domain.SessionSnapshot, meta Metadata, now time.Time) Document {
	if meta.SessionID == "" {
		meta.SessionID = snap.ID
	}
	domains := snap.Domains
	if domains == nil {
		domains = make(map[domain.DomainID]domain.DomainResult)
	}
	return Document{
		Metadata:    meta,
		GeneratedAt: now.UTC(),
		Digest:      snap.Digest,
		Domains:     domains,
		Overall:     snap.Overall,
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat = true
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to load report schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks an encoded report against the schema.
func Validate(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("report is not valid JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}
	return nil
}

// Marshal encodes the report as indented JSON after validating it.
func Marshal(doc Document) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// WriteFile marshals doc and writes it to path, creating parent directories.
func WriteFile(path string, doc Document) error {
	raw, err := Marshal(doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
