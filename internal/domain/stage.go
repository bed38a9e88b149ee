package domain

import (
	"fmt"
	"strings"
)

// Stage is a position in the appraisal state machine. Stages only move
// forward, one step per successful stage run.
type Stage int

// Appraisal stages in order.
const (
	StageAwaitingDocument Stage = iota
	StageDigestPending
	StageDomainsPending
	StageOverallPending
	StageComplete
)

var stageNames = [...]string{
	StageAwaitingDocument: "awaiting_document",
	StageDigestPending:    "digest_pending",
	StageDomainsPending:   "domains_pending",
	StageOverallPending:   "overall_pending",
	StageComplete:         "complete",
}

func (s Stage) String() string {
	if s < StageAwaitingDocument || s > StageComplete {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Next returns the following stage; Complete is terminal.
func (s Stage) Next() Stage {
	if s >= StageComplete {
		return StageComplete
	}
	return s + 1
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	name := strings.TrimSpace(string(b))
	for i, n := range stageNames {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", name)
}
