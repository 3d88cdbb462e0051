package youtrack

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/go-youtrack/internal/api"
	"github.com/tphakala/go-youtrack/internal/auth"
)

// Default configuration values.
const defaultTimeout = 30 * time.Second

const loginPath = "rest/user/login"

// Client is the YouTrack API client. It is safe for concurrent use; the
// iterators it returns are not.
type Client struct {
	// Issues provides access to issue operations.
	Issues IssueService
	// Projects provides access to project operations.
	Projects ProjectService

	transport *api.Transport
	creds     *auth.Credentials
	sessions  *SessionCache
	chain     *ValidationChain
	pageSize  int
	logger    *slog.Logger
}

// NewClient creates a new YouTrack client with the given options.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.baseURL == "" {
		return nil, ErrNoBaseURL
	}

	creds := &auth.Credentials{
		Login:    cfg.login,
		Password: cfg.password,
		Token:    cfg.token,
	}
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}

	transport, err := api.NewTransport(cfg.baseURL, httpClient)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	transport.Logger = logger.With("component", "youtrack.transport")

	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}
	if cfg.tracerProvider != nil {
		transport.Tracer = cfg.tracerProvider.Tracer("github.com/tphakala/go-youtrack")
	}
	if cfg.rateLimit > 0 {
		transport.Limiter = rate.NewLimiter(cfg.rateLimit, max(cfg.burst, 1))
	}

	chain := cfg.chain
	if chain == nil {
		chain = DefaultValidationChain()
	}
	sessions := cfg.sessions
	if sessions == nil {
		sessions = &SessionCache{}
	}

	client := &Client{
		transport: transport,
		creds:     creds,
		sessions:  sessions,
		chain:     chain,
		pageSize:  clampPageSize(cfg.pageSize),
		logger:    logger.With("component", "youtrack.client"),
	}

	// Initialize services
	client.Issues = newIssueService(client)
	client.Projects = newProjectService(client)

	return client, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// PageSize returns the page size used by paginated operations.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Session returns the current session, logging in on first use.
func (c *Client) Session(ctx context.Context) (Session, error) {
	return c.sessions.Get(ctx, c.login)
}

// Logout drops the cached session. The next call logs in again.
func (c *Client) Logout() {
	c.sessions.Invalidate()
}

// Execute sends req with the current session attached. The status code is
// not interpreted; use Call for a validated response.
func (c *Client) Execute(ctx context.Context, req *Request) (*RawResponse, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	req.Session = session

	resp, err := c.transport.Execute(ctx, req)
	if err != nil {
		return nil, transportFailure(err)
	}
	return resp, nil
}

// Call executes req and runs the response through the validation chain.
// Statuses the chain does not own are returned to the caller unchanged.
func (c *Client) Call(ctx context.Context, req *Request, opts ...RequestOption) (*RawResponse, error) {
	newRequestConfig(opts...).applyTo(req)

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err = c.chain.Validate(resp)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "response rejected",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("kind", KindOf(err).String()),
			slog.Any("error", err),
		)
		return nil, err
	}
	return resp, nil
}

// newPager builds a paged iterator whose requests go through this client.
func newPager[T any](c *Client, build PageURIFunc, decode PageDecoder[T], opts ...RequestOption) *PagedIterator[T] {
	reqCfg := newRequestConfig(opts...)
	exec := ExecutorFunc(func(ctx context.Context, req *Request) (*RawResponse, error) {
		return c.Execute(ctx, reqCfg.applyTo(req))
	})
	return NewPagedIterator(exec, NewPageURISupplier(c.pageSize, build), decode,
		WithPageValidation(c.chain),
		WithPageLogger(c.logger),
	)
}

func (c *Client) login(ctx context.Context) (Session, error) {
	if c.creds.UsesToken() {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "using token session",
			slog.String("base_url", c.BaseURL()),
		)
		return auth.NewTokenSession(c.BaseURL(), c.creds.Token), nil
	}

	resp, err := c.transport.Execute(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Form:   c.creds.LoginForm(),
	})
	if err != nil {
		return nil, transportFailure(err)
	}

	resp, err = c.chain.Validate(resp)
	if err != nil {
		return nil, err
	}
	resp, err = requireSuccess(resp)
	if err != nil {
		return nil, err
	}

	body, err := resp.ReadAll()
	if err != nil {
		return nil, transportFailure(err)
	}

	node, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}
	if node.Name() != "login" || strings.TrimSpace(node.Text()) != "ok" {
		return nil, &AuthorizationError{APIError: APIError{
			StatusCode: resp.StatusCode,
			Message:    "login rejected: " + strings.TrimSpace(node.Text()),
			RequestID:  resp.RequestID,
			URL:        resp.URL,
		}}
	}

	cookies := (&http.Response{Header: resp.Header}).Cookies()
	c.logger.LogAttrs(ctx, slog.LevelInfo, "logged in",
		slog.String("base_url", c.BaseURL()),
		slog.String("login", c.creds.Login),
		slog.Int("cookies", len(cookies)),
	)
	return auth.NewCookieSession(c.BaseURL(), cookies), nil
}
