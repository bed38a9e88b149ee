package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

const responsePreviewLen = 200

// LoggingMiddleware records one structured entry when an attempt starts and
// one when it finishes. Prompts and responses are logged as lengths only when
// redaction is on.
type LoggingMiddleware struct {
	logger        *slog.Logger
	redactPrompts bool
}

// NewLoggingMiddleware creates the per-attempt logging middleware.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	lm := &LoggingMiddleware{
		logger:        logger.With("component", "llm"),
		redactPrompts: cfg.RedactPrompts,
	}
	return lm.Middleware
}

// Middleware wraps next with request/response logging.
func (m *LoggingMiddleware) Middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		requestID := uuid.NewString()
		m.logRequest(ctx, req, requestID)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		if err != nil {
			m.logError(ctx, req, err, requestID, duration)
		} else if resp != nil {
			m.logSuccess(ctx, req, resp, requestID, duration)
		}
		return resp, err
	})
}

func (m *LoggingMiddleware) logRequest(ctx context.Context, req *transport.Request, requestID string) {
	fields := []any{
		"request_id", requestID,
		"vendor", string(req.Vendor),
		"model", req.Model,
		"json_mode", req.JSONMode,
		"temperature", req.Temperature,
		"top_p", req.TopP,
	}

	if m.redactPrompts {
		fields = append(fields,
			"system_prompt_length", len(req.SystemPrompt),
			"user_prompt_length", len(req.UserPrompt))
	} else {
		fields = append(fields,
			"system_prompt", req.SystemPrompt,
			"user_prompt", req.UserPrompt)
	}

	m.logger.DebugContext(ctx, "LLM request started", fields...)
}

func (m *LoggingMiddleware) logError(
	ctx context.Context,
	req *transport.Request,
	err error,
	requestID string,
	duration time.Duration,
) {
	level := slog.LevelWarn
	if llmerrors.IsCancellation(err) {
		level = slog.LevelInfo
	}
	m.logger.Log(ctx, level, "LLM request failed",
		"request_id", requestID,
		"vendor", string(req.Vendor),
		"model", req.Model,
		"duration_ms", duration.Milliseconds(),
		"error_type", string(llmerrors.Classify(err)),
		"error", err.Error())
}

func (m *LoggingMiddleware) logSuccess(
	ctx context.Context,
	req *transport.Request,
	resp *transport.Response,
	requestID string,
	duration time.Duration,
) {
	fields := []any{
		"request_id", requestID,
		"vendor", string(req.Vendor),
		"model", req.Model,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	}

	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Text))
	} else {
		preview := resp.Text
		if len(preview) > responsePreviewLen {
			preview = preview[:responsePreviewLen] + "..."
		}
		fields = append(fields, "response_preview", preview)
	}

	m.logger.InfoContext(ctx, "LLM request completed", fields...)
}
