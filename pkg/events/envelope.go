// Package events carries appraisal progress notifications. Producers wrap a
// payload in an Envelope and hand it to an EventSink; delivery is best effort
// and never affects the stage that emitted it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the schema version stamped on new envelopes.
const EnvelopeVersion = "1.0.0"

// Envelope wraps an event payload with routing and correlation metadata.
type Envelope struct {
	// ID is a random UUID per emission.
	ID string `json:"id"`

	// Type names the event, e.g. "appraisal.domain_evaluated".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "orchestrator".
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// SessionID correlates every event of one appraisal.
	SessionID string `json:"session_id"`

	// WorkflowID and RunID are set when the event comes from a Temporal run.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps a fresh id and timestamp.
func NewEnvelope(eventType, source, sessionID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Version:   EnvelopeVersion,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Payload:   raw,
	}, nil
}

// EventSink receives envelopes. Append should return quickly; callers log and
// drop its errors.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink {
	return NoOpEventSink{}
}
