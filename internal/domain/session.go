package domain

import (
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Session is the mutable in-memory assessment state. Each stage writes only
// its own slice (digest, domains or overall); all writes are serialized so
// concurrent domain tasks can merge results safely.
type Session struct {
	mu      sync.RWMutex
	id      string
	digest  map[string]any
	domains map[DomainID]DomainResult
	overall *OverallAssessment
}

// NewSession creates an empty session. An empty id gets a random UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{id: id, domains: make(map[DomainID]DomainResult)}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetDigest stores the document digest.
func (s *Session) SetDigest(d map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = d
}

// Digest returns the digest, or nil when none has been stored.
func (s *Session) Digest() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.digest)
}

// ResetDomains clears the domains map ahead of a domain stage run.
func (s *Session) ResetDomains() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = make(map[DomainID]DomainResult)
}

// PutDomain merges one domain result.
func (s *Session) PutDomain(id DomainID, r DomainResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[id] = r
}

// Domains returns a copy of the stored domain results.
func (s *Session) Domains() map[DomainID]DomainResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.domains)
}

// SetOverall stores the final assessment.
func (s *Session) SetOverall(o OverallAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overall = &o
}

// Overall returns the final assessment, if any.
func (s *Session) Overall() (OverallAssessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.overall == nil {
		return OverallAssessment{}, false
	}
	return *s.overall, true
}

// Reset discards every stage result, keeping the id.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = nil
	s.domains = make(map[DomainID]DomainResult)
	s.overall = nil
}

// Snapshot returns a point-in-time copy suitable for export or queries.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:      s.id,
		Digest:  maps.Clone(s.digest),
		Domains: maps.Clone(s.domains),
	}
	if snap.Domains == nil {
		snap.Domains = make(map[DomainID]DomainResult)
	}
	if s.overall != nil {
		o := *s.overall
		snap.Overall = &o
	}
	return snap
}

// SessionSnapshot is the serializable view of a session.
type SessionSnapshot struct {
	ID      string                    `json:"id"`
	Digest  map[string]any            `json:"digest,omitempty"`
	Domains map[DomainID]DomainResult `json:"domains"`
	Overall *OverallAssessment        `json:"overall,omitempty"`
}
