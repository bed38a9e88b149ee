package configuration

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Config holds the generation client, orchestrator, relay and worker settings.
// Struct tags serve both viper decoding (mapstructure) and JSON dumps; secrets
// are excluded from JSON.
type Config struct {
	// Vendor selects the adapter used for every generation call.
	Vendor string `mapstructure:"vendor" json:"vendor"`

	// HTTP client configuration
	HTTPTimeout time.Duration `mapstructure:"http_timeout" json:"http_timeout"`
	HTTPClient  *http.Client  `mapstructure:"-" json:"-"`

	// Per-vendor endpoints, models and credentials keyed by vendor name.
	Vendors map[string]VendorConfig `mapstructure:"vendors" json:"vendors"`

	// Sampling overrides the prompt pack's recommended settings when set.
	Sampling SamplingConfig `mapstructure:"sampling" json:"sampling"`

	Retry RetryConfig `mapstructure:"retry" json:"retry"`

	// Concurrency bounds in-flight domain evaluations.
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`

	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" json:"rate_limit"`
	Cache         CacheConfig         `mapstructure:"cache" json:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`

	// PromptPack is an optional YAML file replacing the embedded pack.
	PromptPack string `mapstructure:"prompt_pack" json:"prompt_pack"`

	Relay    RelayConfig    `mapstructure:"relay" json:"relay"`
	Temporal TemporalConfig `mapstructure:"temporal" json:"temporal"`
}

// VendorConfig holds vendor-specific endpoint, model and authentication.
type VendorConfig struct {
	Endpoint  string            `mapstructure:"endpoint" json:"endpoint"`
	Model     string            `mapstructure:"model" json:"model"`
	APIKey    string            `mapstructure:"api_key" json:"-"`
	APIKeyEnv string            `mapstructure:"api_key_env" json:"api_key_env"`
	MaxTokens int               `mapstructure:"max_tokens" json:"max_tokens"`
	Headers   map[string]string `mapstructure:"headers" json:"headers,omitempty"`

	// CredentialOptional allows calls without a key, for endpoints such as the
	// relay that inject a server-held credential.
	CredentialOptional bool `mapstructure:"credential_optional" json:"credential_optional"`
}

// ResolveAPIKey returns the inline key, falling back to the named environment variable.
func (v VendorConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(v.APIKey); key != "" {
		return key
	}
	if v.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(v.APIKeyEnv))
	}
	return ""
}

// SamplingConfig carries optional temperature/top-p overrides.
type SamplingConfig struct {
	Temperature *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	TopP        *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
}

// RetryConfig controls the deterministic exponential backoff around vendor calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" json:"base_delay"`
}

// RateLimitConfig throttles calls per vendor with a token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" json:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
	Burst             int     `mapstructure:"burst" json:"burst"`
}

// CacheConfig controls the in-process, success-only response cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	Size    int  `mapstructure:"size" json:"size"`
}

// ObservabilityConfig controls structured logging.
type ObservabilityConfig struct {
	LogLevel      string `mapstructure:"log_level" json:"log_level"`
	LogFormat     string `mapstructure:"log_format" json:"log_format"`
	RedactPrompts bool   `mapstructure:"redact_prompts" json:"redact_prompts"`
}

// RelayConfig configures the same-origin relay for the messages vendor.
type RelayConfig struct {
	Addr             string        `mapstructure:"addr" json:"addr"`
	Path             string        `mapstructure:"path" json:"path"`
	UpstreamURL      string        `mapstructure:"upstream_url" json:"upstream_url"`
	APIKey           string        `mapstructure:"api_key" json:"-"`
	APIKeyEnv        string        `mapstructure:"api_key_env" json:"api_key_env"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	MaxDuration      time.Duration `mapstructure:"max_duration" json:"max_duration"`
	AllowOrigin      string        `mapstructure:"allow_origin" json:"allow_origin"`
	AnthropicVersion string        `mapstructure:"anthropic_version" json:"anthropic_version"`
	DefaultModel     string        `mapstructure:"default_model" json:"default_model"`
	DefaultMaxTokens int           `mapstructure:"default_max_tokens" json:"default_max_tokens"`
	DefaultTemp      float64       `mapstructure:"default_temperature" json:"default_temperature"`
	DefaultTopP      float64       `mapstructure:"default_top_p" json:"default_top_p"`
}

// ServerAPIKey returns the relay's server-held credential, if any.
func (r RelayConfig) ServerAPIKey() string {
	if key := strings.TrimSpace(r.APIKey); key != "" {
		return key
	}
	if r.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(r.APIKeyEnv))
	}
	return ""
}

// TemporalConfig points the worker at a Temporal frontend.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" json:"host_port"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
	TaskQueue string `mapstructure:"task_queue" json:"task_queue"`
}

// ActiveVendor returns the settings of the selected vendor.
func (c *Config) ActiveVendor() (VendorConfig, error) {
	return c.VendorConfig(c.Vendor)
}

// VendorConfig looks up a vendor's settings by name.
func (c *Config) VendorConfig(name string) (VendorConfig, error) {
	vc, ok := c.Vendors[strings.ToLower(name)]
	if !ok {
		return VendorConfig{}, &llmerrors.ConfigurationError{
			Setting: "vendor",
			Message: fmt.Sprintf("%q", name),
			Err:     llmerrors.ErrUnsupportedVendor,
		}
	}
	return vc, nil
}

// Validate checks the settings the generation path depends on. Credentials
// are checked per call so a config can be validated before keys are exported.
func (c *Config) Validate() error {
	if _, err := c.ActiveVendor(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts <= 0 {
		return &llmerrors.ConfigurationError{Setting: "retry.max_attempts", Message: "must be greater than 0"}
	}
	if c.Retry.BaseDelay < 0 {
		return &llmerrors.ConfigurationError{Setting: "retry.base_delay", Message: "must not be negative"}
	}
	if c.Concurrency <= 0 {
		return &llmerrors.ConfigurationError{Setting: "concurrency", Message: "must be greater than 0"}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return &llmerrors.ConfigurationError{Setting: "rate_limit", Message: "requests_per_second and burst must be greater than 0 when enabled"}
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return &llmerrors.ConfigurationError{Setting: "cache.size", Message: "must be greater than 0 when the cache is enabled"}
	}
	if t := c.Sampling.Temperature; t != nil && (*t < 0 || *t > 2) {
		return &llmerrors.ConfigurationError{Setting: "sampling.temperature", Message: "must be within [0, 2]"}
	}
	if p := c.Sampling.TopP; p != nil && (*p <= 0 || *p > 1) {
		return &llmerrors.ConfigurationError{Setting: "sampling.top_p", Message: "must be within (0, 1]"}
	}
	return nil
}
