// Package relay serves the same-origin endpoint the messages adapter talks
// to. It accepts either a compact relay form or a complete messages body,
// attaches a credential and forwards the call upstream.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/providers"
)

// Form is the compact request shape: prompts plus optional sampling and a
// caller-supplied credential.
type Form struct {
	Model       string   `json:"model"`
	System      string   `json:"system"`
	User        string   `json:"user"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	APIKey      string   `json:"apiKey"`
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Handler translates and forwards relay requests. Its settings can be swapped
// at runtime with Update.
type Handler struct {
	cfg    atomic.Pointer[configuration.RelayConfig]
	client *http.Client
	logger *slog.Logger
}

// NewHandler creates a handler. A nil client uses http.DefaultClient; the
// per-request deadline comes from cfg.MaxDuration.
func NewHandler(cfg configuration.RelayConfig, client *http.Client, logger *slog.Logger) *Handler {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{client: client, logger: logger.With("component", "relay")}
	h.Update(cfg)
	return h
}

// Update replaces the active settings. Requests already in flight keep the
// settings they started with.
func (h *Handler) Update(cfg configuration.RelayConfig) {
	d := configuration.DefaultConfig().Relay
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = d.UpstreamURL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = d.MaxBodyBytes
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = d.MaxDuration
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = d.AnthropicVersion
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = d.DefaultModel
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = d.DefaultMaxTokens
	}
	if cfg.AllowOrigin == "" {
		cfg.AllowOrigin = d.AllowOrigin
	}
	h.cfg.Store(&cfg)
}

// Config returns the active settings.
func (h *Handler) Config() configuration.RelayConfig { return *h.cfg.Load() }

// Handle serves every method on the relay path.
func (h *Handler) Handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
	case http.MethodPost:
		h.forward(c)
	default:
		c.JSON(http.StatusMethodNotAllowed, ErrorBody{Error: "Method not allowed"})
	}
}

func (h *Handler) forward(c *gin.Context) {
	cfg := h.cfg.Load()

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorBody{
				Error:   "Request body too large",
				Details: fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Failed to read request body", Details: err.Error()})
		return
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "Request body must be a JSON object"})
		return
	}

	body, key, errBody := h.translate(raw, c.GetHeader("x-api-key"), cfg)
	if errBody != nil {
		c.JSON(http.StatusBadRequest, errBody)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.MaxDuration)
	defer cancel()

	status, respBody, err := h.upstream(ctx, cfg, body, key)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.logger.Warn("upstream request timed out", "timeout", cfg.MaxDuration)
			c.JSON(http.StatusGatewayTimeout, ErrorBody{
				Error:   "Upstream request timed out",
				Details: fmt.Sprintf("no response within %s", cfg.MaxDuration),
			})
			return
		}
		h.logger.Error("upstream request failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorBody{Error: "Upstream request failed", Details: err.Error()})
		return
	}

	if status < 200 || status >= 300 {
		h.logger.Warn("upstream returned error", "status", status)
		c.JSON(status, ErrorBody{
			Error:   fmt.Sprintf("Anthropic API error: %d", status),
			Details: errorDetails(respBody),
		})
		return
	}
	c.Data(status, "application/json", respBody)
}

// translate returns the upstream body and the credential to use. A body that
// already carries messages is forwarded untouched.
func (h *Handler) translate(raw []byte, headerKey string, cfg *configuration.RelayConfig) ([]byte, string, *ErrorBody) {
	if gjson.GetBytes(raw, "messages").IsArray() {
		key := firstNonEmpty(headerKey, cfg.ServerAPIKey())
		if key == "" {
			return nil, "", missingKey()
		}
		return raw, key, nil
	}

	var form Form
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, "", &ErrorBody{Error: "Invalid relay request", Details: err.Error()}
	}
	if strings.TrimSpace(form.User) == "" {
		return nil, "", &ErrorBody{Error: "Missing required field: user"}
	}
	key := firstNonEmpty(form.APIKey, headerKey, cfg.ServerAPIKey())
	if key == "" {
		return nil, "", missingKey()
	}

	msg := providers.MessagesRequest{
		Model:       firstNonEmpty(form.Model, cfg.DefaultModel),
		MaxTokens:   cfg.DefaultMaxTokens,
		Messages:    []providers.MessagesMessage{{Role: "user", Content: form.User}},
		Temperature: cfg.DefaultTemp,
		TopP:        cfg.DefaultTopP,
		System:      form.System,
	}
	if form.MaxTokens != nil && *form.MaxTokens > 0 {
		msg.MaxTokens = *form.MaxTokens
	}
	if form.Temperature != nil {
		msg.Temperature = *form.Temperature
	}
	if form.TopP != nil {
		msg.TopP = *form.TopP
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, "", &ErrorBody{Error: "Invalid relay request", Details: err.Error()}
	}
	return body, key, nil
}

func (h *Handler) upstream(ctx context.Context, cfg *configuration.RelayConfig, body []byte, key string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", cfg.AnthropicVersion)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read upstream response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// errorDetails returns the upstream body as JSON when it parses, else as text.
func errorDetails(body []byte) any {
	if gjson.ValidBytes(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func missingKey() *ErrorBody {
	return &ErrorBody{Error: "Anthropic API key is required. Provide apiKey in the body, an x-api-key header, or configure a server key."}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
