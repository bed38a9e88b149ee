package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// fencedJSON matches the first ```json fenced block, case-insensitively.
var fencedJSON = regexp.MustCompile("(?is)```json(.*?)```")

const maxSnippet = 200

// ExtractJSON returns the JSON payload inside model text: the content of the
// first ```json fence if one exists, otherwise the whole trimmed text.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseJSON extracts and decodes the payload into a generic value.
func ParseJSON(text string) (any, error) {
	payload := ExtractJSON(text)
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, &llmerrors.ParseError{
			Message: "failed to parse JSON from model output",
			Snippet: snippet(payload),
			Err:     err,
		}
	}
	return v, nil
}

// decodeAndAccept parses text and runs accept. Non-validation accept errors
// are wrapped as validation failures so callers see one error family.
func decodeAndAccept(text string, accept func(any) error) error {
	v, err := ParseJSON(text)
	if err != nil {
		return err
	}
	if accept == nil {
		return nil
	}
	if err := accept(v); err != nil {
		var ve *llmerrors.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return &llmerrors.ValidationError{Constraint: err.Error(), Err: err}
	}
	return nil
}

func snippet(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "..."
}
