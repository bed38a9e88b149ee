package providers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

const (
	openAITextPath = "choices.0.message.content"

	// DefaultReasoningMaxTokens is sent as max_completion_tokens for reasoning models.
	DefaultReasoningMaxTokens = 8000
)

// reasoningModel matches model identifiers that reject sampling parameters.
var reasoningModel = regexp.MustCompile(`(?i)^gpt-5\b|^o[0-9]`)

// IsReasoningModel reports whether the chat completions model is a
// reasoning-oriented one.
func IsReasoningModel(model string) bool {
	return reasoningModel.MatchString(strings.TrimSpace(model))
}

// OpenAIAdapter speaks the chat completions protocol.
type OpenAIAdapter struct {
	config configuration.VendorConfig
}

// NewOpenAIAdapter creates a chat completions adapter, defaulting endpoint and model.
func NewOpenAIAdapter(cfg configuration.VendorConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.DefaultOpenAIEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = configuration.DefaultOpenAIModel
	}
	return &OpenAIAdapter{config: cfg}
}

// Vendor returns transport.VendorOpenAI.
func (a *OpenAIAdapter) Vendor() transport.Vendor { return transport.VendorOpenAI }

// CheckCredential implements CredentialChecker.
func (a *OpenAIAdapter) CheckCredential() error {
	return requireKey(transport.VendorOpenAI, a.config, a.config.ResolveAPIKey())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

// BuildRequest maps the normalized request onto a chat completions call.
// Reasoning models get no sampling parameters and no response_format, and
// their output budget goes in max_completion_tokens.
func (a *OpenAIAdapter) BuildRequest(req *transport.Request) (*transport.VendorRequest, error) {
	key := a.config.ResolveAPIKey()
	if err := requireKey(transport.VendorOpenAI, a.config, key); err != nil {
		return nil, err
	}

	model := modelOrDefault(req, a.config)
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	body := chatRequest{Model: model, Messages: messages}
	if IsReasoningModel(model) {
		if maxTokens == 0 {
			maxTokens = DefaultReasoningMaxTokens
		}
		body.MaxCompletionTokens = maxTokens
	} else {
		temperature, topP := req.Temperature, req.TopP
		body.Temperature = &temperature
		body.TopP = &topP
		body.MaxTokens = maxTokens
		if req.JSONMode {
			body.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + key,
	}
	for k, v := range a.config.Headers {
		headers[k] = v
	}

	return &transport.VendorRequest{
		Endpoint: strings.TrimRight(a.config.Endpoint, "/") + "/chat/completions",
		Headers:  headers,
		Body:     raw,
	}, nil
}

// ExtractText reads choices[0].message.content.
func (a *OpenAIAdapter) ExtractText(body []byte) (string, error) {
	return textAt(transport.VendorOpenAI, body, openAITextPath)
}
