package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultAuthScheme  = "Token"
	DefaultRefreshPath = "/auth/refresh/"

	HeaderRequestID = "X-Request-ID"

	tracerName = "github.com/jrsteele09/zhancare-client/apiclient"
)

// Client is the single request pipeline of the application. Every call gets the
// stored access token attached; a 401 triggers one refresh and one retry.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	timeout     time.Duration
	session     Session
	reporter    Reporter
	logger      zerolog.Logger
	authScheme  string
	refreshPath string
	limiter     *rate.Limiter
	metrics     *Metrics
	tracer      trace.Tracer

	refreshGroup singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Timeout wins over WithTimeout when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Client) {
		if r != nil {
			c.reporter = r
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithAuthScheme sets the Authorization scheme, "Token" by default.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.authScheme = scheme
		}
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

// WithRateLimit throttles outgoing attempts to rps with the given burst. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics registers the client's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetrics(reg)
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a client for baseURL. session may be nil for clients that only call
// public endpoints.
func New(baseURL string, session Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[apiclient.New] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:     u,
		timeout:     DefaultTimeout,
		session:     session,
		reporter:    NopReporter{},
		logger:      zerolog.Nop(),
		authScheme:  DefaultAuthScheme,
		refreshPath: DefaultRefreshPath,
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	switch {
	case c.httpClient == nil:
		c.httpClient = &http.Client{Timeout: c.timeout}
	case c.httpClient.Timeout == 0:
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Metrics exposes the client's collectors.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Do executes req through the pipeline. Non 2xx responses and transport failures
// are returned as *Error and reported.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	prepared, err := req.prepare()
	if err != nil {
		apiErr := &Error{Kind: KindEncoding, Method: req.Method, Path: req.Path, Err: err}
		return nil, c.reject(ctx, apiErr)
	}

	ctx, span := c.tracer.Start(ctx, "apiclient "+prepared.Method+" "+prepared.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", prepared.Method),
			attribute.String("url.path", prepared.Path),
		))
	defer span.End()

	requestID := uuid.New().String()
	resp, err := c.do(ctx, prepared, c.accessToken(prepared), requestID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("http.response.status_code", StatusCode(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request, access, requestID string) (*Response, error) {
	resp, err := c.send(ctx, req, access, requestID)
	if err != nil {
		return nil, c.reject(ctx, networkError(req, requestID, err))
	}
	if isSuccess(resp.Status) {
		return resp, nil
	}
	if resp.Status == http.StatusUnauthorized && c.canRefresh(req) {
		fresh, err := c.refreshAccessToken(ctx, access)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return nil, c.reject(ctx, sessionExpiredError(req, resp, err))
			}
			return nil, c.reject(ctx, networkError(req, requestID, err))
		}
		return c.do(ctx, req.withRetry(), fresh, requestID)
	}
	return nil, c.reject(ctx, statusError(req, resp))
}

func (c *Client) canRefresh(req Request) bool {
	return c.session != nil && !req.Public && !req.retried()
}

func (c *Client) accessToken(req Request) string {
	if req.Public || c.session == nil {
		return ""
	}
	tok, ok := c.session.Token()
	if !ok {
		return ""
	}
	return tok.AccessToken
}

// send performs one HTTP attempt and returns the response whatever its status.
func (c *Client) send(ctx context.Context, req Request, access, requestID string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if r := req.bodyReader(); r != nil {
		body = r
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, err
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(HeaderRequestID, requestID)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if access != "" {
		(&oauth2.Token{AccessToken: access, TokenType: c.authScheme}).SetAuthHeader(httpReq)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	c.metrics.Duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.Requests.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		c.metrics.Requests.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}
	c.metrics.Requests.WithLabelValues(req.Method, strconv.Itoa(httpResp.StatusCode)).Inc()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Bool("retry", req.retried()).
		Str("request_id", requestID).
		Dur("took", time.Since(start)).
		Msg("api request")

	return &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      raw,
		RequestID: requestID,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) reject(ctx context.Context, err *Error) error {
	c.reporter.Report(context.WithoutCancel(ctx), err)
	return err
}
