package validation

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

const truncationSuffix = "..."

// DomainItems validates a domain-stage response. It accepts a direct array of
// items, a single item object, or an object wrapping the array under any key.
func DomainItems(raw any) ([]domain.DomainItem, error) {
	list := itemList(raw)
	if len(list) == 0 {
		return nil, &llmerrors.ValidationError{
			Field:      "items",
			Constraint: llmerrors.ErrNoItems.Error(),
			Err:        llmerrors.ErrNoItems,
		}
	}

	items := make([]domain.DomainItem, 0, len(list))
	for i, entry := range list {
		item, err := domainItem(i, entry)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// itemList locates the item array inside raw. Wrapper objects are scanned in
// sorted key order so the choice is deterministic.
func itemList(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		_, hasItem := v["item"]
		_, hasScore := v["score_1to7"]
		if hasItem && hasScore {
			return []any{v}
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

func domainItem(idx int, entry any) (domain.DomainItem, error) {
	prefix := fmt.Sprintf("items[%d]", idx)
	obj, ok := entry.(map[string]any)
	if !ok {
		return domain.DomainItem{}, llmerrors.NewValidationError(prefix, "must be an object", entry)
	}

	var (
		item domain.DomainItem
		msg  string
	)
	if item.Item, msg = integerIn(obj["item"], domain.MinItemNumber, domain.MaxItemNumber); msg != "" {
		return domain.DomainItem{}, llmerrors.NewValidationError(prefix+".item", msg, obj["item"])
	}
	if item.Score, msg = integerIn(obj["score_1to7"], domain.MinItemScore, domain.MaxItemScore); msg != "" {
		return domain.DomainItem{}, llmerrors.NewValidationError(prefix+".score_1to7", msg, obj["score_1to7"])
	}
	if item.Confidence, msg = integerIn(obj["confidence_0to100"], domain.MinConfidence, domain.MaxConfidence); msg != "" {
		return domain.DomainItem{}, llmerrors.NewValidationError(prefix+".confidence_0to100", msg, obj["confidence_0to100"])
	}

	item.Justification = Truncate(stringOrEmpty(obj["justification"]), domain.MaxJustification)

	rawCitations, ok := obj["evidence_citations"].([]any)
	if !ok {
		return domain.DomainItem{}, llmerrors.NewValidationError(prefix+".evidence_citations", "must be an array", obj["evidence_citations"])
	}
	item.Citations = make([]domain.EvidenceCitation, 0, len(rawCitations))
	for j, rc := range rawCitations {
		c, err := citation(fmt.Sprintf("%s.evidence_citations[%d]", prefix, j), rc)
		if err != nil {
			return domain.DomainItem{}, err
		}
		item.Citations = append(item.Citations, c)
	}

	return item, nil
}

// citation validates one evidence pointer. Absent fields stay nil; a null
// section is normalized to the empty string.
func citation(field string, raw any) (domain.EvidenceCitation, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.EvidenceCitation{}, llmerrors.NewValidationError(field, "must be an object", raw)
	}

	var c domain.EvidenceCitation
	if pv, present := obj["page"]; present {
		f, ok := number(pv)
		if !ok {
			return domain.EvidenceCitation{}, llmerrors.NewValidationError(field+".page", "must be a number", pv)
		}
		if f != math.Trunc(f) {
			return domain.EvidenceCitation{}, llmerrors.NewValidationError(field+".page", "must be an integer", pv)
		}
		page := int(f)
		c.Page = &page
	}

	if sv, present := obj["section"]; present {
		var section string
		switch s := sv.(type) {
		case nil:
		case string:
			section = s
		default:
			return domain.EvidenceCitation{}, llmerrors.NewValidationError(field+".section", "must be a string", sv)
		}
		c.Section = &section
	}

	return c, nil
}

// Truncate shortens s to at most limit runes, replacing the tail with "..."
// when it had to cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(truncationSuffix)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + truncationSuffix
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
