package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-appraise/internal/domain"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

const validItem = `{"item":1,"score_1to7":6,"confidence_0to100":80,"evidence_citations":[{"page":3,"section":"Scope"}],"justification":"Objectives are explicit."}`

func TestDomainItemsAcceptedShapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{name: "direct_array", json: `[` + validItem + `]`, want: 1},
		{name: "single_object", json: validItem, want: 1},
		{name: "wrapped_under_items", json: `{"items":[` + validItem + `,` + validItem + `]}`, want: 2},
		{name: "wrapped_after_scalar_key", json: `{"domain":"Rigour","results":[` + validItem + `]}`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := DomainItems(decode(t, tt.json))
			require.NoError(t, err)
			require.Len(t, items, tt.want)
			assert.Equal(t, 1, items[0].Item)
			assert.Equal(t, 6, items[0].Score)
			assert.Equal(t, 80, items[0].Confidence)
			require.Len(t, items[0].Citations, 1)
			assert.Equal(t, 3, *items[0].Citations[0].Page)
			assert.Equal(t, "Scope", *items[0].Citations[0].Section)
		})
	}
}

func TestDomainItemsWrapperPicksFirstArrayInKeyOrder(t *testing.T) {
	raw := decode(t, `{"zeta":[{"bad":true}],"alpha":[`+validItem+`]}`)
	items, err := DomainItems(raw)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDomainItemsNoItems(t *testing.T) {
	for _, in := range []string{`[]`, `{"note":"none"}`, `"text"`, `null`, `42`} {
		_, err := DomainItems(decode(t, in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, llmerrors.ErrNoItems), in)

		var ve *llmerrors.ValidationError
		assert.True(t, errors.As(err, &ve), in)
	}
}

func TestDomainItemsRejections(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{name: "item_too_high", json: `[{"item":24,"score_1to7":4,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[0].item"},
		{name: "item_not_number", json: `[{"item":"1","score_1to7":4,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[0].item"},
		{name: "score_zero", json: `[{"item":1,"score_1to7":0,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[0].score_1to7"},
		{name: "score_eight", json: `[{"item":1,"score_1to7":8,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[0].score_1to7"},
		{name: "score_fractional", json: `[{"item":1,"score_1to7":4.5,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[0].score_1to7"},
		{name: "confidence_missing", json: `[{"item":1,"score_1to7":4,"evidence_citations":[]}]`, field: "items[0].confidence_0to100"},
		{name: "confidence_over_100", json: `[{"item":1,"score_1to7":4,"confidence_0to100":101,"evidence_citations":[]}]`, field: "items[0].confidence_0to100"},
		{name: "citations_not_array", json: `[{"item":1,"score_1to7":4,"confidence_0to100":50,"evidence_citations":"p3"}]`, field: "items[0].evidence_citations"},
		{name: "citation_page_string", json: `[{"item":1,"score_1to7":4,"confidence_0to100":50,"evidence_citations":[{"page":"3"}]}]`, field: "items[0].evidence_citations[0].page"},
		{name: "citation_page_fractional", json: `[{"item":1,"score_1to7":4,"confidence_0to100":50,"evidence_citations":[{"page":2.5}]}]`, field: "items[0].evidence_citations[0].page"},
		{name: "citation_section_number", json: `[{"item":1,"score_1to7":4,"confidence_0to100":50,"evidence_citations":[{"section":7}]}]`, field: "items[0].evidence_citations[0].section"},
		{name: "second_item_invalid", json: `[` + validItem + `,{"item":2,"score_1to7":9,"confidence_0to100":50,"evidence_citations":[]}]`, field: "items[1].score_1to7"},
		{name: "item_not_object", json: `[1]`, field: "items[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DomainItems(decode(t, tt.json))
			var ve *llmerrors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, llmerrors.ErrorTypeValidation, llmerrors.Classify(err))
		})
	}
}

func TestDomainItemsNormalization(t *testing.T) {
	raw := decode(t, `[{"item":2,"score_1to7":5,"confidence_0to100":0,"justification":null,
		"evidence_citations":[{"page":4,"section":null},{}]}]`)

	items, err := DomainItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "", it.Justification)
	require.Len(t, it.Citations, 2)
	require.NotNil(t, it.Citations[0].Section)
	assert.Equal(t, "", *it.Citations[0].Section)
	assert.Nil(t, it.Citations[1].Page)
	assert.Nil(t, it.Citations[1].Section)
}

func TestDomainItemsJustificationLength(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantLen int
		suffix  bool
	}{
		{name: "under_limit", length: 120, wantLen: 120},
		{name: "exactly_limit", length: 300, wantLen: 300},
		{name: "over_limit", length: 305, wantLen: 300, suffix: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []any{map[string]any{
				"item":               float64(3),
				"score_1to7":         float64(4),
				"confidence_0to100":  float64(70),
				"evidence_citations": []any{},
				"justification":      strings.Repeat("é", tt.length),
			}}

			items, err := DomainItems(raw)
			require.NoError(t, err)
			j := items[0].Justification
			assert.Equal(t, tt.wantLen, len([]rune(j)))
			assert.Equal(t, tt.suffix, strings.HasSuffix(j, "..."))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "a...", Truncate("abcdef", 4))
	assert.Equal(t, "...", Truncate("abcdef", 2))
}

func TestDigest(t *testing.T) {
	d, err := Digest(decode(t, `{"scope_purpose":{"objectives":"reduce harm"}}`))
	require.NoError(t, err)
	assert.Contains(t, d, "scope_purpose")

	d, err = Digest(decode(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, d)

	for _, in := range []string{`null`, `[]`, `"digest"`, `3`} {
		_, err := Digest(decode(t, in))
		var ve *llmerrors.ValidationError
		assert.True(t, errors.As(err, &ve), in)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    domain.OverallAssessment
		wantErr string
	}{
		{
			name: "valid",
			json: `{"overall_quality_1to7":6,"recommend_use":"yes_with_modifications","justification":"Strong methods."}`,
			want: domain.OverallAssessment{QualityScore: 6, Recommendation: domain.RecommendYesWithModifications, Justification: "Strong methods."},
		},
		{
			name: "justification_coerced",
			json: `{"overall_quality_1to7":1,"recommend_use":"no","justification":["list"]}`,
			want: domain.OverallAssessment{QualityScore: 1, Recommendation: domain.RecommendNo},
		},
		{name: "score_eight", json: `{"overall_quality_1to7":8,"recommend_use":"yes"}`, wantErr: "overall_quality_1to7"},
		{name: "score_missing", json: `{"recommend_use":"yes"}`, wantErr: "overall_quality_1to7"},
		{name: "bad_recommendation", json: `{"overall_quality_1to7":5,"recommend_use":"maybe"}`, wantErr: "recommend_use"},
		{name: "not_object", json: `[5]`, wantErr: "overall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Overall(decode(t, tt.json))
			if tt.wantErr != "" {
				var ve *llmerrors.ValidationError
				require.True(t, errors.As(err, &ve), "got %v", err)
				assert.Equal(t, tt.wantErr, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
