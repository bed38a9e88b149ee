// Package transport defines the vendor-neutral request/response contract and
// the composable handler pipeline that carries it to a vendor adapter.
package transport

import (
	"fmt"
	"strings"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Vendor identifies one of the supported wire protocols.
type Vendor string

// Supported vendors. Values match the configuration keys.
const (
	VendorGemini    Vendor = "gemini"    // generateContent protocol
	VendorOpenAI    Vendor = "openai"    // chat completions protocol
	VendorAnthropic Vendor = "anthropic" // messages protocol, usually via the relay
)

// Vendors lists every supported vendor in a stable order.
func Vendors() []Vendor {
	return []Vendor{VendorGemini, VendorOpenAI, VendorAnthropic}
}

// ParseVendor normalizes a vendor identifier, failing with a ConfigurationError
// for anything unsupported.
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VendorGemini, VendorOpenAI, VendorAnthropic:
		return v, nil
	default:
		return "", &llmerrors.ConfigurationError{
			Setting: "vendor",
			Message: fmt.Sprintf("%q", s),
			Err:     llmerrors.ErrUnsupportedVendor,
		}
	}
}

// Request is the normalized generation request. It is immutable for the
// duration of a call; cancellation travels on the context, not the request.
type Request struct {
	Vendor       Vendor
	Model        string
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
	Temperature  float64
	TopP         float64
	MaxTokens    int
}

// Validate checks the fields every adapter relies on.
func (r *Request) Validate() error {
	if r == nil {
		return llmerrors.NewValidationError("request", "must not be nil", nil)
	}
	if strings.TrimSpace(r.UserPrompt) == "" {
		return llmerrors.NewValidationError("user_prompt", "must not be empty", nil)
	}
	if r.MaxTokens < 0 {
		return llmerrors.NewValidationError("max_tokens", "must not be negative", r.MaxTokens)
	}
	return nil
}

// WithJSONMode returns a copy of the request with JSON mode set.
func (r Request) WithJSONMode(on bool) *Request {
	r.JSONMode = on
	return &r
}

// Response is the normalized vendor response: the extracted text plus enough
// metadata for logging.
type Response struct {
	Text       string
	Vendor     Vendor
	Model      string
	StatusCode int
	LatencyMs  int64
	RawBody    []byte
}
