package providers

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

const anthropicTextPath = "content.0.text"

// AnthropicAdapter speaks the messages protocol. Its endpoint defaults to the
// same-origin relay, which forwards the body unchanged and injects the
// credential when the caller has none.
type AnthropicAdapter struct {
	config configuration.VendorConfig
}

// NewAnthropicAdapter creates a messages adapter, defaulting endpoint, model
// and output budget.
func NewAnthropicAdapter(cfg configuration.VendorConfig) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.DefaultAnthropicEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = configuration.DefaultAnthropicModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = configuration.DefaultAnthropicTokens
	}
	return &AnthropicAdapter{config: cfg}
}

// Vendor returns transport.VendorAnthropic.
func (a *AnthropicAdapter) Vendor() transport.Vendor { return transport.VendorAnthropic }

// CheckCredential implements CredentialChecker.
func (a *AnthropicAdapter) CheckCredential() error {
	return requireKey(transport.VendorAnthropic, a.config, a.config.ResolveAPIKey())
}

// MessagesRequest is the messages-protocol body. The relay decodes the same type.
type MessagesRequest struct {
	Model       string            `json:"model"`
	MaxTokens   int               `json:"max_tokens"`
	Messages    []MessagesMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p"`
	System      string            `json:"system,omitempty"`
}

// MessagesMessage is one conversation turn.
type MessagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequest maps the normalized request onto a messages call carrying only
// the user turn. JSON mode has no wire switch in this protocol; the prompt
// pack instructs the model and the client recovers the JSON from the text.
func (a *AnthropicAdapter) BuildRequest(req *transport.Request) (*transport.VendorRequest, error) {
	key := a.config.ResolveAPIKey()
	if err := requireKey(transport.VendorAnthropic, a.config, key); err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	body := MessagesRequest{
		Model:       modelOrDefault(req, a.config),
		MaxTokens:   maxTokens,
		Messages:    []MessagesMessage{{Role: "user", Content: req.UserPrompt}},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		System:      req.SystemPrompt,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{
		"Content-Type":      "application/json",
		"anthropic-version": configuration.DefaultAnthropicVersion,
	}
	if key != "" {
		headers["x-api-key"] = key
	}
	for k, v := range a.config.Headers {
		headers[k] = v
	}

	return &transport.VendorRequest{Endpoint: a.config.Endpoint, Headers: headers, Body: raw}, nil
}

// ExtractText reads content[0].text.
func (a *AnthropicAdapter) ExtractText(body []byte) (string, error) {
	return textAt(transport.VendorAnthropic, body, anthropicTextPath)
}
