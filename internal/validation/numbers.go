package validation

import (
	"encoding/json"
	"fmt"
	"math"
)

// number reports the numeric value of a decoded JSON scalar.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// integerIn extracts an integer within [lo, hi]. The returned constraint is
// empty on success.
func integerIn(v any, lo, hi int) (int, string) {
	f, ok := number(v)
	if !ok {
		return 0, "must be a number"
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, "must be an integer"
	}
	if f < float64(lo) || f > float64(hi) {
		return 0, rangeConstraint(lo, hi)
	}
	return int(f), ""
}

func rangeConstraint(lo, hi int) string {
	return fmt.Sprintf("must be between %d and %d", lo, hi)
}
