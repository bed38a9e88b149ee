package configuration

import (
	"time"
)

// HTTP constants.
const (
	DefaultHTTPTimeoutSeconds = 120
)

// Retry constants. The backoff is deterministic: base * 2^attempt, no jitter.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Orchestration constants.
const (
	DefaultConcurrency = 2
	DefaultCacheSize   = 256
)

// Rate limit constants; the limiter is off unless enabled.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultRateLimitBurst    = 2
)

// Vendor defaults.
const (
	DefaultGeminiEndpoint    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel       = "gemini-2.5-flash-preview-05-20"
	DefaultOpenAIEndpoint    = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4.1-2025-04-14"
	DefaultAnthropicEndpoint = "http://localhost:8080/api/anthropic"
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
	DefaultAnthropicTokens   = 4096
)

// Relay defaults.
const (
	DefaultRelayAddr        = ":8080"
	DefaultRelayPath        = "/api/anthropic"
	DefaultRelayUpstream    = "https://api.anthropic.com/v1/messages"
	DefaultRelayMaxBody     = 10 << 20
	DefaultRelayMaxDuration = 30 * time.Second
	DefaultAnthropicVersion = "2023-06-01"
	DefaultRelayTemperature = 0.1
	DefaultRelayTopP        = 1.0
)

// DefaultConfig returns settings that work against the public vendor APIs once
// credentials are exported in the environment.
func DefaultConfig() *Config {
	return &Config{
		Vendor:      "gemini",
		HTTPTimeout: DefaultHTTPTimeoutSeconds * time.Second,
		Vendors: map[string]VendorConfig{
			"gemini": {
				Endpoint:  DefaultGeminiEndpoint,
				Model:     DefaultGeminiModel,
				APIKeyEnv: "GEMINI_API_KEY",
			},
			"openai": {
				Endpoint:  DefaultOpenAIEndpoint,
				Model:     DefaultOpenAIModel,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"anthropic": {
				Endpoint:  DefaultAnthropicEndpoint,
				Model:     DefaultAnthropicModel,
				APIKeyEnv: "ANTHROPIC_API_KEY",
				MaxTokens: DefaultAnthropicTokens,
			},
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultBaseDelay,
		},
		Concurrency: DefaultConcurrency,
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Burst:             DefaultRateLimitBurst,
		},
		Cache: CacheConfig{
			Enabled: false,
			Size:    DefaultCacheSize,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogFormat:     "text",
			RedactPrompts: true,
		},
		Relay: RelayConfig{
			Addr:             DefaultRelayAddr,
			Path:             DefaultRelayPath,
			UpstreamURL:      DefaultRelayUpstream,
			APIKeyEnv:        "ANTHROPIC_API_KEY",
			MaxBodyBytes:     DefaultRelayMaxBody,
			MaxDuration:      DefaultRelayMaxDuration,
			AllowOrigin:      "*",
			AnthropicVersion: DefaultAnthropicVersion,
			DefaultModel:     DefaultAnthropicModel,
			DefaultMaxTokens: DefaultAnthropicTokens,
			DefaultTemp:      DefaultRelayTemperature,
			DefaultTopP:      DefaultRelayTopP,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "appraisal",
		},
	}
}
