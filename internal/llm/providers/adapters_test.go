package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

func decodeBody(t *testing.T, vreq *transport.VendorRequest) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(vreq.Body, &body))
	return body
}

func TestGeminiAdapterBuildRequest(t *testing.T) {
	adapter := NewGeminiAdapter(configuration.VendorConfig{APIKey: "g-key"})

	tests := []struct {
		name     string
		req      *transport.Request
		wantMime string
		wantSys  bool
	}{
		{
			name:     "json_mode_with_system",
			req:      &transport.Request{SystemPrompt: "be strict", UserPrompt: "appraise", JSONMode: true, Temperature: 0.1, TopP: 1},
			wantMime: "application/json",
			wantSys:  true,
		},
		{
			name:     "text_mode_without_system",
			req:      &transport.Request{UserPrompt: "hello", Temperature: 0.1, TopP: 1},
			wantMime: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vreq, err := adapter.BuildRequest(tt.req)
			require.NoError(t, err)

			assert.Equal(t,
				"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-05-20:generateContent?key=g-key",
				vreq.Endpoint)
			assert.Equal(t, "application/json", vreq.Headers["Content-Type"])

			body := decodeBody(t, vreq)
			contents := body["contents"].([]any)
			require.Len(t, contents, 1)
			first := contents[0].(map[string]any)
			assert.Equal(t, "user", first["role"])
			assert.Equal(t, tt.req.UserPrompt, first["parts"].([]any)[0].(map[string]any)["text"])

			gen := body["generationConfig"].(map[string]any)
			assert.Equal(t, tt.wantMime, gen["responseMimeType"])
			assert.InDelta(t, 0.1, gen["temperature"], 1e-9)
			assert.InDelta(t, 1.0, gen["topP"], 1e-9)
			assert.NotContains(t, gen, "maxOutputTokens")

			sys, ok := body["systemInstruction"]
			assert.Equal(t, tt.wantSys, ok)
			if tt.wantSys {
				parts := sys.(map[string]any)["parts"].([]any)
				assert.Equal(t, "be strict", parts[0].(map[string]any)["text"])
			}
		})
	}
}

func TestOpenAIAdapterBuildRequest(t *testing.T) {
	tests := []struct {
		name          string
		model         string
		req           transport.Request
		wantSampling  bool
		wantFormat    bool
		wantMaxCompl  float64
		wantMessages  int
		wantFirstRole string
	}{
		{
			name:          "chat_model_json_mode",
			model:         "gpt-4.1-2025-04-14",
			req:           transport.Request{SystemPrompt: "sys", UserPrompt: "u", JSONMode: true, Temperature: 0.2, TopP: 0.9},
			wantSampling:  true,
			wantFormat:    true,
			wantMessages:  2,
			wantFirstRole: "system",
		},
		{
			name:          "chat_model_text_mode_no_system",
			model:         "gpt-4.1-2025-04-14",
			req:           transport.Request{UserPrompt: "u", Temperature: 0, TopP: 1},
			wantSampling:  true,
			wantMessages:  1,
			wantFirstRole: "user",
		},
		{
			name:          "reasoning_o_series",
			model:         "o3-mini",
			req:           transport.Request{SystemPrompt: "sys", UserPrompt: "u", JSONMode: true, Temperature: 0.2, TopP: 0.9},
			wantMaxCompl:  DefaultReasoningMaxTokens,
			wantMessages:  2,
			wantFirstRole: "system",
		},
		{
			name:          "reasoning_gpt5_uppercase",
			model:         "GPT-5",
			req:           transport.Request{UserPrompt: "u", JSONMode: true},
			wantMaxCompl:  DefaultReasoningMaxTokens,
			wantMessages:  1,
			wantFirstRole: "user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewOpenAIAdapter(configuration.VendorConfig{APIKey: "sk-test", Model: tt.model})
			vreq, err := adapter.BuildRequest(&tt.req)
			require.NoError(t, err)

			assert.Equal(t, "https://api.openai.com/v1/chat/completions", vreq.Endpoint)
			assert.Equal(t, "Bearer sk-test", vreq.Headers["Authorization"])

			body := decodeBody(t, vreq)
			assert.Equal(t, tt.model, body["model"])
			messages := body["messages"].([]any)
			require.Len(t, messages, tt.wantMessages)
			assert.Equal(t, tt.wantFirstRole, messages[0].(map[string]any)["role"])

			_, hasTemp := body["temperature"]
			_, hasTopP := body["top_p"]
			assert.Equal(t, tt.wantSampling, hasTemp)
			assert.Equal(t, tt.wantSampling, hasTopP)

			_, hasFormat := body["response_format"]
			assert.Equal(t, tt.wantFormat, hasFormat)
			if tt.wantFormat {
				assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
			}

			if tt.wantMaxCompl > 0 {
				assert.Equal(t, tt.wantMaxCompl, body["max_completion_tokens"])
				assert.NotContains(t, body, "max_tokens")
			} else {
				assert.NotContains(t, body, "max_completion_tokens")
			}
		})
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := map[string]bool{
		"o1":                 true,
		"o3-mini":            true,
		"O4-mini":            true,
		"gpt-5":              true,
		"gpt-5-mini":         true,
		"gpt-50":             false,
		"gpt-4.1-2025-04-14": false,
		"gpt-4o":             false,
		"omni":               false,
	}
	for model, want := range tests {
		t.Run(model, func(t *testing.T) {
			assert.Equal(t, want, IsReasoningModel(model))
		})
	}
}

func TestAnthropicAdapterBuildRequest(t *testing.T) {
	t.Run("defaults_and_system", func(t *testing.T) {
		adapter := NewAnthropicAdapter(configuration.VendorConfig{APIKey: "ak"})
		vreq, err := adapter.BuildRequest(&transport.Request{SystemPrompt: "sys", UserPrompt: "u", Temperature: 0.1, TopP: 1, JSONMode: true})
		require.NoError(t, err)

		assert.Equal(t, configuration.DefaultAnthropicEndpoint, vreq.Endpoint)
		assert.Equal(t, "ak", vreq.Headers["x-api-key"])
		assert.Equal(t, "2023-06-01", vreq.Headers["anthropic-version"])

		body := decodeBody(t, vreq)
		assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
		assert.Equal(t, float64(4096), body["max_tokens"])
		assert.Equal(t, "sys", body["system"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])
		assert.Equal(t, "u", messages[0].(map[string]any)["content"])
	})

	t.Run("no_system_field_when_empty", func(t *testing.T) {
		adapter := NewAnthropicAdapter(configuration.VendorConfig{APIKey: "ak"})
		vreq, err := adapter.BuildRequest(&transport.Request{UserPrompt: "u"})
		require.NoError(t, err)
		assert.NotContains(t, decodeBody(t, vreq), "system")
	})

	t.Run("optional_credential_omits_header", func(t *testing.T) {
		adapter := NewAnthropicAdapter(configuration.VendorConfig{CredentialOptional: true})
		vreq, err := adapter.BuildRequest(&transport.Request{UserPrompt: "u"})
		require.NoError(t, err)
		assert.NotContains(t, vreq.Headers, "x-api-key")
	})
}

func TestMissingCredential(t *testing.T) {
	cfg := configuration.VendorConfig{APIKeyEnv: "APPRAISE_TEST_UNSET_KEY"}
	adapters := []transport.Adapter{NewGeminiAdapter(cfg), NewOpenAIAdapter(cfg), NewAnthropicAdapter(cfg)}

	for _, adapter := range adapters {
		t.Run(string(adapter.Vendor()), func(t *testing.T) {
			_, err := adapter.BuildRequest(&transport.Request{UserPrompt: "u"})
			assert.ErrorIs(t, err, llmerrors.ErrMissingCredential)
			assert.Equal(t, llmerrors.ErrorTypeConfiguration, llmerrors.Classify(err))

			checker, ok := adapter.(CredentialChecker)
			require.True(t, ok)
			assert.ErrorIs(t, checker.CheckCredential(), llmerrors.ErrMissingCredential)
		})
	}
}

func TestExtractText(t *testing.T) {
	gemini := NewGeminiAdapter(configuration.VendorConfig{})
	openai := NewOpenAIAdapter(configuration.VendorConfig{})
	anthropic := NewAnthropicAdapter(configuration.VendorConfig{})

	tests := []struct {
		name    string
		adapter transport.Adapter
		body    string
		want    string
		wantErr bool
	}{
		{name: "gemini_candidate", adapter: gemini, body: `{"candidates":[{"content":{"parts":[{"text":"{\"a\":1}"}]}}]}`, want: `{"a":1}`},
		{name: "gemini_no_candidates", adapter: gemini, body: `{"candidates":[]}`, wantErr: true},
		{name: "openai_choice", adapter: openai, body: `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`, want: "hi"},
		{name: "openai_null_content", adapter: openai, body: `{"choices":[{"message":{"content":null}}]}`, wantErr: true},
		{name: "anthropic_content", adapter: anthropic, body: `{"content":[{"type":"text","text":"ok"}]}`, want: "ok"},
		{name: "anthropic_invalid_json", adapter: anthropic, body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.adapter.ExtractText([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, llmerrors.ErrorTypeParse, llmerrors.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter(t *testing.T) {
	r, err := NewRouter(configuration.DefaultConfig().Vendors)
	require.NoError(t, err)

	for _, v := range transport.Vendors() {
		adapter, err := r.Pick(v)
		require.NoError(t, err)
		assert.Equal(t, v, adapter.Vendor())
	}

	_, err = r.Pick(transport.Vendor("cohere"))
	assert.ErrorIs(t, err, llmerrors.ErrUnsupportedVendor)

	_, err = NewRouter(map[string]configuration.VendorConfig{"cohere": {}})
	assert.ErrorIs(t, err, llmerrors.ErrUnsupportedVendor)
}
