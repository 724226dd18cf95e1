package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/pinsync/internal/ir"
)

const (
	// DefaultEndpoint is the path the parsing service listens on.
	DefaultEndpoint = "/0246-parse"

	// DefaultTimeout bounds one parse request.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a reply body is read.
	maxResponseBytes = 1 << 20

	// RequestIDHeader carries a per-request id for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Client calls the parsing service.
//
// Thread-safety: safe for concurrent use.
type Client struct {
	baseURL    string
	endpoint   string
	httpClient *http.Client
	contract   *Contract
	inflight   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(path string) Option {
	return func(c *Client) { c.endpoint = path }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	contract, err := NewContract()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		contract:   contract,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasPrefix(c.endpoint, "/") {
		c.endpoint = "/" + c.endpoint
	}
	return c, nil
}

// URL returns the full request URL.
func (c *Client) URL() string {
	return c.baseURL + c.endpoint
}

// Parse sends query to the service and returns its reply.
//
// A reply with a non-empty Error list is returned with a nil error; it is
// up to the caller to reject it. Every failure to obtain a reply is a
// *TransportError.
//
// Identical queries issued while a request is in flight join it. The shared
// request is not cancelled when one caller's context ends; each caller
// stops waiting on its own context and the HTTP timeout bounds the rest.
func (c *Client) Parse(ctx context.Context, query string) (*ir.ParseResponse, error) {
	ch := c.inflight.DoChan(query, func() (any, error) {
		return c.do(context.WithoutCancel(ctx), query)
	})
	select {
	case res := <-ch:
		if res.Shared {
			sharedTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(*ir.ParseResponse)), nil
	case <-ctx.Done():
		return nil, &TransportError{Err: ctx.Err()}
	}
}

func (c *Client) do(ctx context.Context, query string) (*ir.ParseResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := slog.With("request_id", requestID, "url", c.URL())

	resp, err := c.roundTrip(ctx, requestID, query)
	result := resultOK
	switch {
	case err != nil:
		result = resultError
		log.Warn("parse request failed", "error", err, "duration", time.Since(start))
	case len(resp.Error) > 0:
		result = resultRejected
		log.Debug("parse request rejected", "errors", len(resp.Error), "duration", time.Since(start))
	default:
		log.Debug("parse request complete", "entries", len(resp.Order), "duration", time.Since(start))
	}
	requestDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, requestID, query string) (*ir.ParseResponse, error) {
	body, err := json.Marshal(ir.ParseRequest{Input: query})
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(raw))),
		}
	}
	if err := c.contract.Check(raw); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}

	var out ir.ParseResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error == nil {
		out.Error = []string{}
	}
	if out.Order == nil {
		out.Order = ir.Schema{}
	}
	return &out, nil
}

// clone gives each caller of a shared request its own slices.
func clone(r *ir.ParseResponse) *ir.ParseResponse {
	return &ir.ParseResponse{
		Error: append([]string{}, r.Error...),
		Order: append(ir.Schema{}, r.Order...),
	}
}
