package configuration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. APPRAISE_VENDOR=openai or
// APPRAISE_VENDORS_OPENAI_MODEL=o3-mini.
const EnvPrefix = "APPRAISE"

// Load reads an optional YAML file on top of DefaultConfig and applies
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadAndWatch behaves like Load and then re-decodes the file whenever it
// changes on disk. onChange receives either the new config or the decode error;
// the previous config stays in effect on error.
func LoadAndWatch(path string, onChange func(*Config, error)) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config watch requires a file path")
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "configuration")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Info("config file changed", "path", e.Name, "op", e.Op.String())
		next, err := decode(v)
		if onChange != nil {
			onChange(next, err)
		}
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"sampling.temperature", "sampling.top_p"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Vendor = strings.ToLower(strings.TrimSpace(cfg.Vendor))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("vendor", d.Vendor)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	for name, vc := range d.Vendors {
		prefix := "vendors." + name + "."
		v.SetDefault(prefix+"endpoint", vc.Endpoint)
		v.SetDefault(prefix+"model", vc.Model)
		v.SetDefault(prefix+"api_key", vc.APIKey)
		v.SetDefault(prefix+"api_key_env", vc.APIKeyEnv)
		v.SetDefault(prefix+"max_tokens", vc.MaxTokens)
		v.SetDefault(prefix+"credential_optional", vc.CredentialOptional)
	}
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("observability.log_level", d.Observability.LogLevel)
	v.SetDefault("observability.log_format", d.Observability.LogFormat)
	v.SetDefault("observability.redact_prompts", d.Observability.RedactPrompts)
	v.SetDefault("prompt_pack", d.PromptPack)
	v.SetDefault("relay.addr", d.Relay.Addr)
	v.SetDefault("relay.path", d.Relay.Path)
	v.SetDefault("relay.upstream_url", d.Relay.UpstreamURL)
	v.SetDefault("relay.api_key", d.Relay.APIKey)
	v.SetDefault("relay.api_key_env", d.Relay.APIKeyEnv)
	v.SetDefault("relay.max_body_bytes", d.Relay.MaxBodyBytes)
	v.SetDefault("relay.max_duration", d.Relay.MaxDuration)
	v.SetDefault("relay.allow_origin", d.Relay.AllowOrigin)
	v.SetDefault("relay.anthropic_version", d.Relay.AnthropicVersion)
	v.SetDefault("relay.default_model", d.Relay.DefaultModel)
	v.SetDefault("relay.default_max_tokens", d.Relay.DefaultMaxTokens)
	v.SetDefault("relay.default_temperature", d.Relay.DefaultTemp)
	v.SetDefault("relay.default_top_p", d.Relay.DefaultTopP)
	v.SetDefault("temporal.host_port", d.Temporal.HostPort)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
}
