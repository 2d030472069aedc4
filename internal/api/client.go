// Package api is the storefront's HTTP client: authenticated requests with a
// shared timeout, global 401 handling and typed endpoints per resource.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

// Authenticator supplies the token for each request and receives 401s.
type Authenticator interface {
	Current() (token string, generation uint64)
	Invalidate(ctx context.Context, generation uint64, reason session.Reason) bool
}

type Client struct {
	baseURL    string
	http       *http.Client
	auth       Authenticator
	authScheme string
	userAgent  string
	timeout    time.Duration
	metrics    *metrics.Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(cfg config.APIConfig, auth Authenticator, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		auth:       auth,
		authScheme: strings.TrimSpace(cfg.AuthScheme),
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// AssetURL turns an image path from the API into an absolute URL.
func (c *Client) AssetURL(path string) string {
	return ResolveAsset(c.baseURL, path)
}

// ResolveAsset joins base and path with exactly one slash. Absolute URLs are
// returned unchanged.
func ResolveAsset(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Request describes one API call. Endpoint is the path template used as the
// metrics label; Op is the message reported when the server gives none.
type Request struct {
	Method   string
	Path     string
	Endpoint string
	Query    url.Values
	Body     any
	Header   http.Header
	Op       string
}

type errorBody struct {
	Message string `json:"message"`
}

// Do sends req and decodes a 2xx body into out (nil discards it). An empty
// body leaves out untouched.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	start := time.Now()
	err := c.do(ctx, req, out)

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}
	c.metrics.ObserveAPI(endpoint, req.Method, outcome(err), time.Since(start))

	if err != nil && !IsCanceled(err) {
		logger.FromContext(ctx).Debug("api request failed",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) do(parent context.Context, req Request, out any) error {
	ctx, cancel := context.WithTimeoutCause(parent, c.timeout, errRequestTimeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindValidation, Op: req.Op, Message: req.Op, Err: err}
		}
		body = bytes.NewReader(data)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req), body)
	if err != nil {
		return &Error{Kind: KindValidation, Op: req.Op, Message: req.Op, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := logger.RequestID(parent)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	hreq.Header.Set("X-Request-ID", requestID)

	var gen uint64
	if c.auth != nil {
		var token string
		token, gen = c.auth.Current()
		if token != "" {
			hreq.Header.Set("Authorization", c.authorization(token))
		}
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return c.transportError(parent, ctx, req.Op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.transportError(parent, ctx, req.Op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.auth != nil {
			c.auth.Invalidate(context.WithoutCancel(parent), gen, session.ReasonUnauthorized)
		}
		return &Error{Kind: KindUnauthorized, Op: req.Op, Status: resp.StatusCode, Message: serverMessage(data, "unauthorized")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: KindServer, Op: req.Op, Status: resp.StatusCode, Message: serverMessage(data, req.Op)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindValidation, Op: req.Op, Status: resp.StatusCode, Message: req.Op + ": unexpected response", Err: err}
	}
	return nil
}

func (c *Client) authorization(token string) string {
	if c.authScheme == "" {
		return token
	}
	return c.authScheme + " " + token
}

func (c *Client) url(req Request) string {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// transportError classifies a failure with no usable response. A cancelled
// caller gets its own context error back.
func (c *Client) transportError(parent, ctx context.Context, op string, err error) error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Op: op, Message: op + ": request timed out", Err: perr}
		}
		return perr
	}
	if errors.Is(context.Cause(ctx), errRequestTimeout) {
		return &Error{Kind: KindTimeout, Op: op, Message: op + ": request timed out", Err: errRequestTimeout}
	}
	return &Error{Kind: KindNetwork, Op: op, Message: op + ": network error", Err: err}
}

func serverMessage(data []byte, fallback string) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && strings.TrimSpace(body.Message) != "" {
		return body.Message
	}
	if fallback == "" {
		return "request failed"
	}
	return fallback
}
