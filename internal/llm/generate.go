package llm

import (
	"context"

	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// Validator converts decoded JSON into a typed value or rejects it.
type Validator[T any] func(raw any) (T, error)

// GenerateStructured runs a JSON-mode generation and returns the validated value.
func GenerateStructured[T any](ctx context.Context, c Client, req *transport.Request, validate Validator[T]) (T, error) {
	var out T
	err := c.GenerateJSON(ctx, req, func(raw any) error {
		v, err := validate(raw)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
