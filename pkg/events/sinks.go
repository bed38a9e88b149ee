package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// LogSink writes each event as one structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging at info level through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, e.Type,
		"event_id", e.ID,
		"source", e.Source,
		"session_id", e.SessionID,
		"payload", string(e.Payload))
	return nil
}

// MemorySink keeps events in order; used by tests and the CLI summary.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements EventSink.
func (s *MemorySink) Append(_ context.Context, e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Types returns the event types in append order.
func (s *MemorySink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// FanOut delivers every event to each sink, returning the first error.
type FanOut []EventSink

// Append implements EventSink.
func (f FanOut) Append(ctx context.Context, e Envelope) error {
	var first error
	for _, s := range f {
		if err := s.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
