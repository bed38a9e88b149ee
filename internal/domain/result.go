package domain

import (
	"github.com/shopspring/decimal"
)

// DomainResult is the validated outcome of one domain evaluation.
// CalculatedScore is always derived from Items, never taken from the model.
type DomainResult struct {
	Name            string       `json:"name"`
	Items           []DomainItem `json:"items"`
	CalculatedScore int          `json:"calculated_score"`
}

// NewDomainResult builds a result and derives its score.
func NewDomainResult(name string, items []DomainItem) DomainResult {
	return DomainResult{
		Name:            name,
		Items:           items,
		CalculatedScore: CalculateDomainScore(items),
	}
}

var (
	hundred = decimal.NewFromInt(100)
	span    = decimal.NewFromInt(MaxItemScore - MinItemScore)
)

// CalculateDomainScore rescales the summed 1..7 item scores onto 0..100:
// round(100 * (sum - n) / (6 * n)), with halves rounded up. It returns 0 for
// an empty list. Decimal arithmetic keeps the rounding exact.
func CalculateDomainScore(items []DomainItem) int {
	n := int64(len(items))
	if n == 0 {
		return 0
	}

	var sum int64
	for _, it := range items {
		sum += int64(it.Score)
	}

	obtained := decimal.NewFromInt(sum - n*MinItemScore)
	maxRange := span.Mul(decimal.NewFromInt(n))
	return int(obtained.Mul(hundred).Div(maxRange).Round(0).IntPart())
}
