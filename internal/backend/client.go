// Package backend is the typed REST client for the table retrieval backend.
//
// Every call runs under its own deadline. Failures are classified into
// core error kinds:
//
//	404                       -> NotFound
//	400, 422                  -> Invalid (UploadRejected for uploads)
//	408, per-call deadline    -> Timeout
//	5xx, other non-2xx,
//	network, bad JSON         -> Transient
//
// FastAPI {"detail": ...} bodies are unwrapped to the detail text.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/tablerag/internal/core"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	BaseURL    string        // e.g. http://localhost:8000
	Timeout    time.Duration // per-call deadline (default: 10s)
	HTTPClient *http.Client  // optional; http.DefaultClient settings otherwise
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:8000"
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
}

// Client talks to the backend over HTTP. It holds no cache; every call
// reflects the backend's current state.
type Client struct {
	base    *url.URL
	timeout time.Duration
	do      func(*http.Request) (*http.Response, error)
}

var _ core.Backend = (*Client)(nil)

// New creates a client from opts.
func New(opts Options) (*Client, error) {
	opts.defaults()
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", opts.BaseURL)
	}
	return &Client{base: u, timeout: opts.Timeout, do: opts.HTTPClient.Do}, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// request describes one backend call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

// call performs req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) call(ctx context.Context, req request, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	hreq, err := http.NewRequestWithContext(callCtx, req.method, u.String(), body)
	if err != nil {
		return core.NewError(core.KindInvalid, req.op, "build request", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		hreq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.do(hreq)
	if err != nil {
		return c.transportError(ctx, callCtx, req.op, err)
	}
	defer resp.Body.Close()

	slog.Debug("backend call",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(req.op, resp.StatusCode, slurp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if callCtx.Err() != nil {
			return c.transportError(ctx, callCtx, req.op, err)
		}
		return core.NewError(core.KindTransient, req.op, "malformed response", err)
	}
	return nil
}

// transportError classifies a failure that produced no usable response.
// Cancellation by the caller passes through unclassified.
func (c *Client) transportError(parent, callCtx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return core.NewError(core.KindTimeout, op, fmt.Sprintf("no response within %s", c.timeout), err)
	}
	return core.NewError(core.KindTransient, op, "backend unreachable", err)
}

// statusError classifies a non-2xx response.
func statusError(op string, status int, body []byte) error {
	var kind core.Kind
	switch {
	case status == http.StatusNotFound:
		kind = core.KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnsupportedMediaType:
		kind = core.KindInvalid
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = core.KindTimeout
	default:
		kind = core.KindTransient
	}
	e := core.NewError(kind, op, errorDetail(status, body), nil)
	e.Status = status
	return e
}

// errorDetail extracts FastAPI's detail field, falling back to the raw body
// or the status text.
func errorDetail(status int, body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s
		}
		// Validation errors carry a list of objects.
		var items []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if json.Unmarshal(env.Detail, &items) == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				msgs = append(msgs, it.Msg)
			}
			return strings.Join(msgs, "; ")
		}
		return string(env.Detail)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(status)
}
