package retry

import (
	"context"
	"log/slog"

	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// NewMiddleware adapts Do to the transport pipeline so every vendor call made
// through the chain gets the same backoff policy.
func NewMiddleware(opts Options) (transport.Middleware, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "retry")
	}

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			attemptOpts := opts
			attemptOpts.Logger = opts.Logger.With("vendor", string(req.Vendor), "model", req.Model)
			return Do(ctx, attemptOpts, func(ctx context.Context) (*transport.Response, error) {
				return next.Handle(ctx, req)
			})
		})
	}, nil
}
