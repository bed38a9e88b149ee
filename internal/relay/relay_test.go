package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/providers"
)

type upstreamCall struct {
	body    []byte
	key     string
	version string
}

type fakeUpstream struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
	delay  time.Duration
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{body: body, key: r.Header.Get("x-api-key"), version: r.Header.Get("anthropic-version")})
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}

func (f *fakeUpstream) recorded() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

func newRelay(t *testing.T, up *fakeUpstream, mutate func(*configuration.RelayConfig)) http.Handler {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	cfg := configuration.DefaultConfig().Relay
	cfg.UpstreamURL = srv.URL
	cfg.APIKeyEnv = ""
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg, srv.Client(), nil).Handler()
}

func do(h http.Handler, method, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, configuration.DefaultRelayPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var eb ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	return eb
}

func TestRelayFormTranslation(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: `{"content":[{"type":"text","text":"hi"}]}`}
	h := newRelay(t, up, nil)

	rec := do(h, http.MethodPost, `{"system":"be brief","user":"hello","apiKey":"body-key"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, up.body, rec.Body.String())

	calls := up.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "body-key", calls[0].key)
	assert.Equal(t, configuration.DefaultAnthropicVersion, calls[0].version)

	var sent providers.MessagesRequest
	require.NoError(t, json.Unmarshal(calls[0].body, &sent))
	assert.Equal(t, "claude-sonnet-4-20250514", sent.Model)
	assert.Equal(t, 4096, sent.MaxTokens)
	assert.InDelta(t, 0.1, sent.Temperature, 1e-9)
	assert.InDelta(t, 1.0, sent.TopP, 1e-9)
	assert.Equal(t, "be brief", sent.System)
	assert.Equal(t, []providers.MessagesMessage{{Role: "user", Content: "hello"}}, sent.Messages)
	assert.NotContains(t, string(calls[0].body), "apiKey")
}

func TestRelayFormExplicitSampling(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: `{}`}
	h := newRelay(t, up, nil)

	rec := do(h, http.MethodPost, `{"model":"claude-x","user":"u","max_tokens":512,"temperature":0,"top_p":0.5,"apiKey":"k"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sent providers.MessagesRequest
	require.NoError(t, json.Unmarshal(up.recorded()[0].body, &sent))
	assert.Equal(t, "claude-x", sent.Model)
	assert.Equal(t, 512, sent.MaxTokens)
	assert.Zero(t, sent.Temperature)
	assert.InDelta(t, 0.5, sent.TopP, 1e-9)
}

func TestMessagesBodyForwardedUnchanged(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: `{"content":[]}`}
	h := newRelay(t, up, func(c *configuration.RelayConfig) { c.APIKey = "server-key" })

	body := `{"model":"m","max_tokens":10,"messages":[{"role":"user","content":"x"}],"temperature":0.3,"top_p":1}`
	rec := do(h, http.MethodPost, body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	calls := up.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, body, string(calls[0].body))
	assert.Equal(t, "server-key", calls[0].key)
}

func TestCredentialPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		server string
		want   string
	}{
		{name: "body_wins", body: `{"user":"u","apiKey":"body"}`, header: "hdr", server: "srv", want: "body"},
		{name: "header_over_server", body: `{"user":"u"}`, header: "hdr", server: "srv", want: "hdr"},
		{name: "server_fallback", body: `{"user":"u"}`, server: "srv", want: "srv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{status: http.StatusOK, body: `{}`}
			h := newRelay(t, up, func(c *configuration.RelayConfig) { c.APIKey = tt.server })

			hdr := map[string]string{}
			if tt.header != "" {
				hdr["x-api-key"] = tt.header
			}
			rec := do(h, http.MethodPost, tt.body, hdr)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, up.recorded()[0].key)
		})
	}
}

func TestRelayRejections(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		body      string
		mutate    func(*configuration.RelayConfig)
		wantCode  int
		wantError string
	}{
		{
			name:      "missing_user",
			method:    http.MethodPost,
			body:      `{"system":"s","apiKey":"k"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Missing required field: user",
		},
		{
			name:      "missing_credential",
			method:    http.MethodPost,
			body:      `{"user":"u"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Anthropic API key is required",
		},
		{
			name:      "not_json",
			method:    http.MethodPost,
			body:      `user=u`,
			wantCode:  http.StatusBadRequest,
			wantError: "Request body must be a JSON object",
		},
		{
			name:      "wrong_method",
			method:    http.MethodGet,
			wantCode:  http.StatusMethodNotAllowed,
			wantError: "Method not allowed",
		},
		{
			name:      "body_too_large",
			method:    http.MethodPost,
			body:      `{"user":"` + strings.Repeat("a", 200) + `","apiKey":"k"}`,
			mutate:    func(c *configuration.RelayConfig) { c.MaxBodyBytes = 64 },
			wantCode:  http.StatusRequestEntityTooLarge,
			wantError: "Request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{status: http.StatusOK, body: `{}`}
			h := newRelay(t, up, tt.mutate)

			rec := do(h, tt.method, tt.body, nil)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error, tt.wantError)
			assert.Empty(t, up.recorded())
		})
	}
}

func TestPreflight(t *testing.T) {
	h := newRelay(t, &fakeUpstream{status: http.StatusOK}, nil)

	rec := do(h, http.MethodOptions, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, x-api-key, anthropic-version", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestUpstreamErrorPassthrough(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantDetails any
	}{
		{
			name:        "json_details",
			body:        `{"type":"error","error":{"type":"rate_limit_error"}}`,
			wantDetails: map[string]any{"type": "error", "error": map[string]any{"type": "rate_limit_error"}},
		},
		{
			name:        "text_details",
			body:        `overloaded`,
			wantDetails: "overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{status: http.StatusTooManyRequests, body: tt.body}
			h := newRelay(t, up, nil)

			rec := do(h, http.MethodPost, `{"user":"u","apiKey":"k"}`, nil)

			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			eb := decodeError(t, rec)
			assert.Equal(t, "Anthropic API error: 429", eb.Error)
			assert.Equal(t, tt.wantDetails, eb.Details)
		})
	}
}

func TestUpstreamTimeout(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: `{}`, delay: time.Second}
	h := newRelay(t, up, func(c *configuration.RelayConfig) { c.MaxDuration = 20 * time.Millisecond })

	rec := do(h, http.MethodPost, `{"user":"u","apiKey":"k"}`, nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Upstream request timed out", decodeError(t, rec).Error)
}

func TestHealthz(t *testing.T) {
	h := newRelay(t, &fakeUpstream{status: http.StatusOK}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandlerUpdate(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: `{}`}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	cfg := configuration.DefaultConfig().Relay
	cfg.UpstreamURL = srv.URL
	cfg.APIKeyEnv = ""
	s := NewServer(cfg, srv.Client(), nil)

	rec := do(s.Handler(), http.MethodPost, `{"user":"u"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	cfg.APIKey = "rotated"
	s.Update(cfg)

	rec = do(s.Handler(), http.MethodPost, `{"user":"u"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rotated", up.recorded()[0].key)
}
