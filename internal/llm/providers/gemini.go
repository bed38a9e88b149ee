package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

const (
	geminiTextPath = "candidates.0.content.parts.0.text"
	mimeJSON       = "application/json"
	mimeText       = "text/plain"
)

// GeminiAdapter speaks the generateContent protocol: user turn in
// contents/parts, system prompt in systemInstruction, response mode and
// sampling in generationConfig, key in the query string.
type GeminiAdapter struct {
	config configuration.VendorConfig
}

// NewGeminiAdapter creates a Gemini adapter, defaulting endpoint and model.
func NewGeminiAdapter(cfg configuration.VendorConfig) *GeminiAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.DefaultGeminiEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = configuration.DefaultGeminiModel
	}
	return &GeminiAdapter{config: cfg}
}

// Vendor returns transport.VendorGemini.
func (a *GeminiAdapter) Vendor() transport.Vendor { return transport.VendorGemini }

// CheckCredential implements CredentialChecker.
func (a *GeminiAdapter) CheckCredential() error {
	return requireKey(transport.VendorGemini, a.config, a.config.ResolveAPIKey())
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	ResponseMimeType string  `json:"responseMimeType"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
}

// BuildRequest maps the normalized request onto a generateContent call.
func (a *GeminiAdapter) BuildRequest(req *transport.Request) (*transport.VendorRequest, error) {
	key := a.config.ResolveAPIKey()
	if err := requireKey(transport.VendorGemini, a.config, key); err != nil {
		return nil, err
	}

	mime := mimeText
	if req.JSONMode {
		mime = mimeJSON
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			ResponseMimeType: mime,
			MaxOutputTokens:  maxTokens,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(a.config.Endpoint, "/"),
		url.PathEscape(modelOrDefault(req, a.config)),
		url.QueryEscape(key))

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range a.config.Headers {
		headers[k] = v
	}

	return &transport.VendorRequest{Endpoint: endpoint, Headers: headers, Body: raw}, nil
}

// ExtractText reads candidates[0].content.parts[0].text.
func (a *GeminiAdapter) ExtractText(body []byte) (string, error) {
	return textAt(transport.VendorGemini, body, geminiTextPath)
}
