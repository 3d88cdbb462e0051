// Package api provides low-level HTTP transport for YouTrack API calls.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"

	tracerName = "github.com/tphakala/go-youtrack"
)

// ErrBodyTooLarge is returned by ReadAll when a response exceeds the size limit.
var ErrBodyTooLarge = errors.New("response too large")

// Session supplies the base URL and the authentication material attached to requests.
type Session interface {
	BaseURL() string
	Cookies() []*http.Cookie
	Header() http.Header
}

// Transport handles HTTP communication with the YouTrack API.
type Transport struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	UserAgent  string

	// Limiter, when set, is waited on before every request.
	Limiter *rate.Limiter
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// NewTransport creates a Transport with the given configuration.
func NewTransport(baseURL string, httpClient *http.Client) (*Transport, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	return &Transport{
		BaseURL:    u,
		HTTPClient: httpClient,
		UserAgent:  "go-youtrack/1.0",
		Logger:     slog.Default().With("component", "youtrack.transport"),
		Tracer:     otel.GetTracerProvider().Tracer(tracerName),
	}, nil
}

// Request represents an API request.
type Request struct {
	Method string
	// Path is joined to the base URL. Ignored when URL is set.
	Path string
	// URL is an absolute request URL, used as-is.
	URL     string
	Query   url.Values
	Form    url.Values
	Headers http.Header
	Session Session
}

// Response is a raw API response. The body is left unread until the caller consumes it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	URL        string
	RequestID  string
}

// ReadAll reads and closes the body, failing if it exceeds the size limit.
func (r *Response) ReadAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, defaultMaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > defaultMaxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, defaultMaxBodySize)
	}
	return body, nil
}

// Close discards the body.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Execute sends a request and returns the raw response. Status codes are not
// interpreted here; the caller owns the body.
func (t *Transport) Execute(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get(RequestIDHeader)

	ctx, span := t.Tracer.Start(ctx, "youtrack.http",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", httpReq.Method),
			attribute.String("url.full", httpReq.URL.String()),
			attribute.String("youtrack.request_id", requestID),
		),
	)
	defer span.End()

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter")
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := time.Now()
	httpResp, err := t.HTTPClient.Do(httpReq.WithContext(ctx))
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		recordRequest(ctx, httpReq.Method, 0, elapsed)
		t.Logger.LogAttrs(ctx, slog.LevelDebug, "request failed",
			slog.String("method", httpReq.Method),
			slog.String("url", httpReq.URL.String()),
			slog.String("request_id", requestID),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(httpResp.StatusCode))
	}
	recordRequest(ctx, httpReq.Method, httpResp.StatusCode, elapsed)
	t.Logger.LogAttrs(ctx, slog.LevelDebug, "request completed",
		slog.String("method", httpReq.Method),
		slog.String("url", httpReq.URL.String()),
		slog.Int("status", httpResp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("duration", elapsed),
	)

	if id := httpResp.Header.Get(RequestIDHeader); id != "" {
		requestID = id
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       httpResp.Body,
		URL:        httpReq.URL.String(),
		RequestID:  requestID,
	}, nil
}

func (t *Transport) resolve(req *Request) (*url.URL, error) {
	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL: %w", err)
		}
		return u, nil
	}

	base := t.BaseURL
	if req.Session != nil && req.Session.BaseURL() != "" {
		u, err := url.Parse(req.Session.BaseURL())
		if err != nil {
			return nil, fmt.Errorf("invalid session URL: %w", err)
		}
		base = u
	}
	return base.JoinPath(req.Path), nil
}

func (t *Transport) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u, err := t.resolve(req)
	if err != nil {
		return nil, err
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if req.Form != nil {
		bodyReader = strings.NewReader(req.Form.Encode())
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	httpReq.Header.Set("Accept", "application/xml")
	httpReq.Header.Set("User-Agent", t.UserAgent)

	if req.Session != nil {
		maps.Copy(httpReq.Header, req.Session.Header())
		for _, c := range req.Session.Cookies() {
			httpReq.AddCookie(c)
		}
	}

	maps.Copy(httpReq.Header, req.Headers)

	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	return httpReq, nil
}
