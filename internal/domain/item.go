package domain

import "fmt"

// Item and score bounds.
const (
	MinItemNumber    = 1
	MaxItemNumber    = 23
	MinItemScore     = 1
	MaxItemScore     = 7
	MinConfidence    = 0
	MaxConfidence    = 100
	MaxJustification = 300
)

// DomainID identifies one of the six fixed appraisal domains.
type DomainID int

// The six domains, in presentation order.
const (
	DomainScopePurpose DomainID = iota + 1
	DomainStakeholders
	DomainRigour
	DomainClarity
	DomainApplicability
	DomainEditorialIndependence
)

// DomainCount is the size of the fixed domain enumeration.
const DomainCount = 6

// Valid reports whether the id is within 1..6.
func (d DomainID) Valid() bool {
	return d >= DomainScopePurpose && d <= DomainEditorialIndependence
}

func (d DomainID) String() string {
	return fmt.Sprintf("domain %d", int(d))
}

// EvidenceCitation points at the place in the source document supporting a
// score. Both fields are optional.
type EvidenceCitation struct {
	Page    *int    `json:"page,omitempty"`
	Section *string `json:"section,omitempty"`
}

// DomainItem is one validated item score. Justification never exceeds
// MaxJustification runes; longer model output is truncated, not rejected.
type DomainItem struct {
	Item          int                `json:"item"`
	Score         int                `json:"score_1to7"`
	Confidence    int                `json:"confidence_0to100"`
	Citations     []EvidenceCitation `json:"evidence_citations"`
	Justification string             `json:"justification"`
}
