// Package ratelimit throttles vendor calls with per-vendor token buckets.
// A call waits for a token instead of failing, so a burst of domain
// evaluations is smoothed rather than turned into 429 retries.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// slowWait is the wait above which a throttled call is logged.
const slowWait = 100 * time.Millisecond

type rateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[transport.Vendor]*rate.Limiter
	config   configuration.RateLimitConfig
	logger   *slog.Logger
}

// NewMiddleware returns a middleware that waits for a vendor token before
// each attempt.
func NewMiddleware(cfg configuration.RateLimitConfig, logger *slog.Logger) (transport.Middleware, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	rlm := &rateLimitMiddleware{
		limiters: make(map[transport.Vendor]*rate.Limiter),
		config:   cfg,
		logger:   logger.With("component", "ratelimit"),
	}
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := rlm.wait(ctx, req.Vendor); err != nil {
				return nil, err
			}
			return next.Handle(ctx, req)
		})
	}, nil
}

func validate(cfg configuration.RateLimitConfig) error {
	if cfg.RequestsPerSecond <= 0 {
		return &llmerrors.ConfigurationError{Setting: "rate_limit.requests_per_second", Message: "must be greater than 0"}
	}
	if cfg.Burst <= 0 {
		return &llmerrors.ConfigurationError{Setting: "rate_limit.burst", Message: "must be greater than 0"}
	}
	return nil
}

func (r *rateLimitMiddleware) limiter(vendor transport.Vendor) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[vendor]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
		r.limiters[vendor] = l
	}
	return l
}

func (r *rateLimitMiddleware) wait(ctx context.Context, vendor transport.Vendor) error {
	start := time.Now()
	if err := r.limiter(vendor).Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return &llmerrors.CancellationError{Op: fmt.Sprintf("%s rate limit wait", vendor), Err: ctx.Err()}
		}
		// The wait would outlast the context deadline.
		return &llmerrors.TransportError{Vendor: string(vendor), Err: fmt.Errorf("rate limit: %w", err)}
	}
	if waited := time.Since(start); waited > slowWait {
		r.logger.DebugContext(ctx, "vendor call throttled", "vendor", string(vendor), "waited", waited)
	}
	return nil
}
