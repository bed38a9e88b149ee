package validation

import (
	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Overall validates the final assessment response.
func Overall(raw any) (domain.OverallAssessment, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return domain.OverallAssessment{}, llmerrors.NewValidationError("overall", "must be an object", raw)
	}

	score, msg := integerIn(obj["overall_quality_1to7"], domain.MinQualityScore, domain.MaxQualityScore)
	if msg != "" {
		return domain.OverallAssessment{}, llmerrors.NewValidationError("overall_quality_1to7", msg, obj["overall_quality_1to7"])
	}

	rec, _ := obj["recommend_use"].(string)
	if !domain.Recommendation(rec).Valid() {
		return domain.OverallAssessment{}, llmerrors.NewValidationError(
			"recommend_use", "must be 'yes', 'yes_with_modifications', or 'no'", obj["recommend_use"])
	}

	return domain.OverallAssessment{
		QualityScore:   score,
		Recommendation: domain.Recommendation(rec),
		Justification:  stringOrEmpty(obj["justification"]),
	}, nil
}
