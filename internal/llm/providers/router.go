// Package providers implements the per-vendor wire adapters behind
// transport.Adapter: one for the generateContent protocol, one for chat
// completions and one for the messages protocol. Adapters share no state and
// are selected by transport.Vendor through a Router.
package providers

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// CredentialChecker is implemented by adapters that need an API key. The
// generation client calls it before any network activity.
type CredentialChecker interface {
	CheckCredential() error
}

// NewRouter creates a router with one adapter per configured vendor.
func NewRouter(configs map[string]configuration.VendorConfig) (transport.Router, error) {
	adapters := make(map[transport.Vendor]transport.Adapter, len(configs))

	for name, cfg := range configs {
		vendor, err := transport.ParseVendor(name)
		if err != nil {
			return nil, err
		}
		adapters[vendor] = New(vendor, cfg)
	}

	return &router{adapters: adapters}, nil
}

// New builds the adapter for a known vendor. Callers are expected to have
// parsed the vendor with transport.ParseVendor.
func New(vendor transport.Vendor, cfg configuration.VendorConfig) transport.Adapter {
	switch vendor {
	case transport.VendorOpenAI:
		return NewOpenAIAdapter(cfg)
	case transport.VendorAnthropic:
		return NewAnthropicAdapter(cfg)
	default:
		return NewGeminiAdapter(cfg)
	}
}

type router struct {
	adapters map[transport.Vendor]transport.Adapter
}

// Pick returns the adapter registered for vendor.
func (r *router) Pick(vendor transport.Vendor) (transport.Adapter, error) {
	adapter, ok := r.adapters[vendor]
	if !ok {
		return nil, &llmerrors.ConfigurationError{
			Setting: "vendor",
			Message: fmt.Sprintf("%q", vendor),
			Err:     llmerrors.ErrUnsupportedVendor,
		}
	}
	return adapter, nil
}

// requireKey fails with a ConfigurationError when a mandatory key is absent.
func requireKey(vendor transport.Vendor, cfg configuration.VendorConfig, key string) error {
	if key != "" || cfg.CredentialOptional {
		return nil
	}
	setting := "vendors." + string(vendor) + ".api_key"
	if cfg.APIKeyEnv != "" {
		setting += " (or $" + cfg.APIKeyEnv + ")"
	}
	return &llmerrors.ConfigurationError{Setting: setting, Err: llmerrors.ErrMissingCredential}
}

func modelOrDefault(req *transport.Request, cfg configuration.VendorConfig) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return cfg.Model
}
