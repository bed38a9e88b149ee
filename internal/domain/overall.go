package domain

// Overall quality bounds.
const (
	MinQualityScore = 1
	MaxQualityScore = 7
)

// Recommendation is the appraiser's verdict on using the document.
type Recommendation string

// Allowed recommendations.
const (
	RecommendYes                  Recommendation = "yes"
	RecommendYesWithModifications Recommendation = "yes_with_modifications"
	RecommendNo                   Recommendation = "no"
)

// Valid reports whether r is one of the three allowed values.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendYes, RecommendYesWithModifications, RecommendNo:
		return true
	default:
		return false
	}
}

// OverallAssessment is the validated final verdict.
type OverallAssessment struct {
	QualityScore   int            `json:"overall_quality_1to7"`
	Recommendation Recommendation `json:"recommend_use"`
	Justification  string         `json:"justification"`
}
