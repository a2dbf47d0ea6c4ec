package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultRetries   = 2
	defaultRate      = 10.0
	defaultBurst     = 5
	defaultUserAgent = "provision-core/1.0"

	maxBodyBytes  = 8 << 20
	maxRetryAfter = 5 * time.Second
)

// ClientConfig configures a Client. Zero values select defaults; a negative
// MaxRetries disables retries.
type ClientConfig struct {
	BaseURL    string
	Auth       AuthConfig
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
	Headers    map[string]string
	UserAgent  string
	Transport  http.RoundTripper
}

func (c *ClientConfig) withDefaults() *ClientConfig {
	out := ClientConfig{}
	if c != nil {
		out = *c
	}
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	switch {
	case out.MaxRetries == 0:
		out.MaxRetries = defaultRetries
	case out.MaxRetries < 0:
		out.MaxRetries = 0
	}
	if out.RateLimit <= 0 {
		out.RateLimit = defaultRate
	}
	if out.RateBurst <= 0 {
		out.RateBurst = defaultBurst
	}
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	if out.Auth == nil {
		out.Auth = NoAuth{}
	}
	return &out
}

// Client talks to one REST backend. Requests share a token-bucket limiter
// and are retried on 429 and, for idempotent methods, on 5xx.
type Client struct {
	cfg     *ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg *ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Request is one call relative to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

func (r *Request) idempotent() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *Response) JSON(target any) error { return json.Unmarshal(r.Body, target) }

func (r *Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Do sends req. A status >= 400 yields both the Response and an *HTTPError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		resp, err := c.send(ctx, req)
		if err == nil || attempt >= c.cfg.MaxRetries || !c.shouldRetry(req, err) {
			return resp, err
		}

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(retryDelay(resp, attempt)):
		}
	}
}

func (c *Client) shouldRetry(req *Request, err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return httpErr.StatusCode >= 500 && req.idempotent()
}

// retryDelay honours a Retry-After header in seconds, capped, and otherwise
// backs off exponentially from 100ms.
func retryDelay(resp *Response, attempt int) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Headers.Get("Retry-After")); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return (100 * time.Millisecond) << attempt
}

func (c *Client) resolve(req *Request) string {
	u := c.cfg.BaseURL
	if req.Path != "" {
		u = strings.TrimSuffix(u, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	for _, headers := range []map[string]string{c.cfg.Headers, req.Headers} {
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}
	}
	c.cfg.Auth.Apply(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: data}
	if httpResp.StatusCode >= 400 {
		return resp, &HTTPError{StatusCode: httpResp.StatusCode, Message: truncate(string(data), 512)}
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query, Headers: headers})
}

// Post sends body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, query url.Values, headers map[string]string, body any) (*Response, error) {
	req := &Request{Method: http.MethodPost, Path: path, Query: query, Headers: map[string]string{"Content-Type": "application/json"}}
	for k, v := range headers {
		req.Headers[k] = v
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req.Body = data
	}
	return c.Do(ctx, req)
}

// HTTPError is a response with status >= 400.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
