// Package llm provides the vendor-neutral generation client used by every
// appraisal stage. A call travels through a small middleware pipeline:
//
//   - retry (outer): deterministic exponential backoff per logical call
//   - rate limit (optional): waits for a per-vendor token before each attempt
//   - logging (per attempt): structured slog records with optional redaction
//   - HTTP handler: adapter selection, wire call and text extraction
//
// Structured calls additionally extract a JSON payload from the model text,
// decode it and hand it to a caller-supplied validator. Successful structured
// outputs may be kept in an LRU cache for the lifetime of the process.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ahrav/go-appraise/internal/llm/cache"
	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/providers"
	"github.com/ahrav/go-appraise/internal/llm/ratelimit"
	"github.com/ahrav/go-appraise/internal/llm/retry"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// Client is the generation contract consumed by the appraisal stages.
type Client interface {
	// GenerateText returns the raw model text for a plain-text request.
	GenerateText(ctx context.Context, req *transport.Request) (string, error)

	// GenerateJSON forces JSON mode, extracts and decodes the JSON payload and
	// passes it to accept. An accept error is returned as the call's failure.
	GenerateJSON(ctx context.Context, req *transport.Request, accept func(any) error) error
}

// Option customizes a client.
type Option func(*clientOptions)

type clientOptions struct {
	logger  *slog.Logger
	sleep   retry.SleepFunc
	handler transport.Handler
}

// WithLogger sets the logger used by the retry and logging middleware. A nil
// logger keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSleep replaces the retry backoff wait; tests use it to avoid real delays.
func WithSleep(s retry.SleepFunc) Option {
	return func(o *clientOptions) { o.sleep = s }
}

// WithHandler replaces the core HTTP handler, leaving retry and logging in place.
func WithHandler(h transport.Handler) Option {
	return func(o *clientOptions) { o.handler = h }
}

type client struct {
	config  *configuration.Config
	router  transport.Router
	handler transport.Handler
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewClient builds a client from configuration. A nil config uses defaults.
func NewClient(cfg *configuration.Config, opts ...Option) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	router, err := providers.NewRouter(cfg.Vendors)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	core := o.handler
	if core == nil {
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		core = transport.NewHTTPHandler(httpClient, router)
	}

	retryOpts := retry.FromConfig(cfg.Retry)
	retryOpts.Sleep = o.sleep
	retryOpts.Logger = o.logger.With("component", "retry")
	retryMiddleware, err := retry.NewMiddleware(retryOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}

	middlewares := []transport.Middleware{retryMiddleware}
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewMiddleware(cfg.RateLimit, o.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		middlewares = append(middlewares, limiter)
	}
	middlewares = append(middlewares, NewLoggingMiddleware(cfg.Observability, o.logger))
	handler := transport.Chain(core, middlewares...)

	c := &client{
		config:  cfg,
		router:  router,
		handler: handler,
		logger:  o.logger,
	}

	if cfg.Cache.Enabled {
		if c.cache, err = cache.New(cfg.Cache.Size); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// GenerateText implements Client.
func (c *client) GenerateText(ctx context.Context, req *transport.Request) (string, error) {
	call, err := c.prepare(req, false)
	if err != nil {
		return "", err
	}

	key := c.cacheKey(call)
	if key != "" {
		if text, ok := c.cache.Get(key); ok {
			return text, nil
		}
	}

	resp, err := c.handler.Handle(ctx, call)
	if err != nil {
		return "", err
	}
	if key != "" {
		c.cache.Put(key, resp.Text)
	}
	return resp.Text, nil
}

// GenerateJSON implements Client. Decoding and validation happen once, after
// the retried vendor call; a malformed or invalid payload is not re-requested.
func (c *client) GenerateJSON(ctx context.Context, req *transport.Request, accept func(any) error) error {
	call, err := c.prepare(req, true)
	if err != nil {
		return err
	}

	key := c.cacheKey(call)
	if key != "" {
		if text, ok := c.cache.Get(key); ok {
			if err := decodeAndAccept(text, accept); err == nil {
				return nil
			}
			c.cache.Remove(key)
		}
	}

	resp, err := c.handler.Handle(ctx, call)
	if err != nil {
		return err
	}

	if err := decodeAndAccept(resp.Text, accept); err != nil {
		c.logger.Debug("structured output rejected",
			"vendor", string(call.Vendor),
			"error_type", string(llmerrors.Classify(err)),
			"error", err)
		return err
	}

	if key != "" {
		c.cache.Put(key, resp.Text)
	}
	return nil
}

// prepare copies the request, fills vendor and model defaults and verifies
// that the vendor is routable and credentialed before any network activity.
func (c *client) prepare(req *transport.Request, jsonMode bool) (*transport.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	call := req.WithJSONMode(jsonMode)

	if call.Vendor == "" {
		vendor, err := transport.ParseVendor(c.config.Vendor)
		if err != nil {
			return nil, err
		}
		call.Vendor = vendor
	}

	adapter, err := c.router.Pick(call.Vendor)
	if err != nil {
		return nil, err
	}
	if checker, ok := adapter.(providers.CredentialChecker); ok {
		if err := checker.CheckCredential(); err != nil {
			return nil, err
		}
	}

	if call.Model == "" {
		if vc, err := c.config.VendorConfig(string(call.Vendor)); err == nil {
			call.Model = vc.Model
		}
	}
	return call, nil
}

func (c *client) cacheKey(req *transport.Request) string {
	if c.cache == nil {
		return ""
	}
	return cache.Key(req)
}
