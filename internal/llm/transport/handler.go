package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// VendorRequest is the wire-level request an adapter produces.
type VendorRequest struct {
	Endpoint string
	Headers  map[string]string
	Body     []byte
}

// Adapter maps normalized requests onto one vendor's wire format and back.
// Implemented by the providers package.
type Adapter interface {
	BuildRequest(req *Request) (*VendorRequest, error)
	ExtractText(body []byte) (string, error)
	Vendor() Vendor
}

// Router selects the adapter for a vendor.
type Router interface {
	Pick(vendor Vendor) (Adapter, error)
}

// Handler processes generation requests through a composable middleware pipeline.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. The first
// middleware is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 64 << 10

// NewHTTPHandler creates the core handler that performs the vendor call.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// Handle builds the vendor request, POSTs it under ctx and extracts the text.
// Non-2xx responses become TransportErrors carrying status and body. A
// cancelled ctx aborts the in-flight request and surfaces as a cancellation.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Vendor)
	if err != nil {
		return nil, err
	}

	vreq, err := adapter.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", req.Vendor, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, vreq.Endpoint, bytes.NewReader(vreq.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range vreq.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &llmerrors.CancellationError{Op: string(req.Vendor) + " request", Err: ctx.Err()}
		}
		return nil, &llmerrors.TransportError{Vendor: string(req.Vendor), Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &llmerrors.CancellationError{Op: string(req.Vendor) + " request", Err: ctx.Err()}
		}
		return nil, &llmerrors.TransportError{Vendor: string(req.Vendor), StatusCode: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &llmerrors.TransportError{
			Vendor:     string(req.Vendor),
			StatusCode: httpResp.StatusCode,
			Body:       string(body),
		}
	}

	text, err := adapter.ExtractText(body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:       text,
		Vendor:     req.Vendor,
		Model:      req.Model,
		StatusCode: httpResp.StatusCode,
		LatencyMs:  latency.Milliseconds(),
		RawBody:    body,
	}, nil
}
