package validation

import (
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Digest accepts any non-null JSON object.
func Digest(raw any) (map[string]any, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil, llmerrors.NewValidationError("digest", "must be an object", raw)
	}
	return obj, nil
}
