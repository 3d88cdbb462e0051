package youtrack

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL        string
	login          string
	password       string
	token          string
	httpClient     *http.Client
	timeout        time.Duration
	userAgent      string
	logger         *slog.Logger
	pageSize       int
	rateLimit      rate.Limit
	burst          int
	tracerProvider trace.TracerProvider
	chain          *ValidationChain
	sessions       *SessionCache
}

// WithBaseURL sets the YouTrack base URL, e.g. https://tracker.example.com/youtrack.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithCredentials sets the login and password used for cookie login.
func WithCredentials(login, password string) ClientOption {
	return func(c *clientConfig) {
		c.login = login
		c.password = password
	}
}

// WithToken authenticates with a permanent token instead of a login call.
func WithToken(token string) ClientOption {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: This option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithPageSize sets the number of items requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *clientConfig) {
		c.pageSize = n
	}
}

// WithRateLimit throttles outgoing requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(c *clientConfig) {
		c.rateLimit = r
		c.burst = burst
	}
}

// WithTracerProvider sets the tracer provider used for request spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *clientConfig) {
		c.tracerProvider = tp
	}
}

// WithValidationChain replaces the default response validation chain.
func WithValidationChain(chain *ValidationChain) ClientOption {
	return func(c *clientConfig) {
		c.chain = chain
	}
}

// WithSessionCache shares a session cache between clients.
func WithSessionCache(cache *SessionCache) ClientOption {
	return func(c *clientConfig) {
		c.sessions = cache
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
}

func newRequestConfig(opts ...RequestOption) *requestConfig {
	r := &requestConfig{
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// applyTo copies the configured headers onto req.
func (r *requestConfig) applyTo(req *Request) *Request {
	if len(r.headers) == 0 {
		return req
	}
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}
	maps.Copy(req.Headers, r.headers)
	return req
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithRequestID sets the X-Request-ID header for tracing.
func WithRequestID(id string) RequestOption {
	return WithHeader("X-Request-ID", id)
}
