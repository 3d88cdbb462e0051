package youtrack

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Executor performs one HTTP request. Implementations must be safe for
// concurrent use.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*RawResponse, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*RawResponse, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*RawResponse, error) {
	return f(ctx, req)
}

// PageURIFunc builds the URI of the page starting at offset.
type PageURIFunc func(offset, size int) string

// PageURISupplier hands out page URIs at offsets 0, size, 2*size, ...
// Offsets never repeat and never decrease.
type PageURISupplier struct {
	size  int
	next  int
	build PageURIFunc
}

// NewPageURISupplier creates a supplier. A non-positive size selects the
// default page size; sizes above the server maximum are clamped.
func NewPageURISupplier(size int, build PageURIFunc) *PageURISupplier {
	return &PageURISupplier{size: clampPageSize(size), build: build}
}

// Next returns the URI and offset of the next page and advances.
func (s *PageURISupplier) Next() (uri string, offset int) {
	offset = s.next
	s.next += s.size
	return s.build(offset, s.size), offset
}

// PageSize returns the fixed page size.
func (s *PageURISupplier) PageSize() int {
	return s.size
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	default:
		return size
	}
}

// PageDecoder turns the body of one page into items.
type PageDecoder[T any] func(body []byte) ([]T, error)

type pagerState int

const (
	pagerIdle pagerState = iota
	pagerBuffered
	pagerExhausted
	pagerFailed
)

// PagedIterator is a pull iterator over a paginated endpoint. It fetches one
// page at a time, only when its buffer runs dry, and stops for good at the
// first empty page. It is not safe for concurrent use.
type PagedIterator[T any] struct {
	exec   Executor
	chain  *ValidationChain
	uris   *PageURISupplier
	decode PageDecoder[T]
	logger *slog.Logger

	buf      []T
	state    pagerState
	err      error
	requests int
}

// PagerOption configures a PagedIterator.
type PagerOption func(*pagerConfig)

type pagerConfig struct {
	chain  *ValidationChain
	logger *slog.Logger
}

// WithPageValidation replaces the default validation chain.
func WithPageValidation(chain *ValidationChain) PagerOption {
	return func(c *pagerConfig) {
		c.chain = chain
	}
}

// WithPageLogger sets the logger used for page fetches.
func WithPageLogger(logger *slog.Logger) PagerOption {
	return func(c *pagerConfig) {
		c.logger = logger
	}
}

// NewPagedIterator creates an iterator that fetches pages through exec.
func NewPagedIterator[T any](exec Executor, uris *PageURISupplier, decode PageDecoder[T], opts ...PagerOption) *PagedIterator[T] {
	cfg := &pagerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.chain == nil {
		cfg.chain = DefaultValidationChain()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &PagedIterator[T]{
		exec:   exec,
		chain:  cfg.chain,
		uris:   uris,
		decode: decode,
		logger: cfg.logger.With("component", "youtrack.pager"),
	}
}

// HasNext reports whether another item is available, fetching the next page
// if the buffer is empty. Once a page comes back empty, or a fetch fails, no
// further requests are made.
func (it *PagedIterator[T]) HasNext(ctx context.Context) (bool, error) {
	switch it.state {
	case pagerBuffered:
		return true, nil
	case pagerExhausted:
		return false, nil
	case pagerFailed:
		return false, it.err
	}

	items, err := it.fetch(ctx)
	if err != nil {
		it.state = pagerFailed
		it.err = err
		return false, err
	}
	if len(items) == 0 {
		it.state = pagerExhausted
		return false, nil
	}

	it.buf = items
	it.state = pagerBuffered
	return true, nil
}

// Next pops the next buffered item. It never fetches; call HasNext first.
func (it *PagedIterator[T]) Next() (T, error) {
	var zero T
	if len(it.buf) == 0 {
		return zero, ErrNoSuchElement
	}

	item := it.buf[0]
	it.buf[0] = zero
	it.buf = it.buf[1:]
	if len(it.buf) == 0 {
		it.buf = nil
		it.state = pagerIdle
	}
	return item, nil
}

// All returns the remaining items as a sequence.
func (it *PagedIterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return FromIterator(ctx, it)
}

// Requests returns the number of page requests issued so far.
func (it *PagedIterator[T]) Requests() int {
	return it.requests
}

func (it *PagedIterator[T]) fetch(ctx context.Context) ([]T, error) {
	uri, offset := it.uris.Next()
	it.requests++

	resp, err := it.exec.Execute(ctx, &Request{Method: http.MethodGet, URL: uri})
	if err != nil {
		return nil, transportFailure(err)
	}

	resp, err = it.chain.Validate(resp)
	if err != nil {
		it.logger.LogAttrs(ctx, slog.LevelWarn, "page rejected",
			slog.Int("offset", offset),
			slog.Any("error", err),
		)
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

	items, err := it.decode(body)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = newParseError(err, body)
		}
		return nil, err
	}

	it.logger.LogAttrs(ctx, slog.LevelDebug, "page fetched",
		slog.Int("offset", offset),
		slog.Int("size", it.uris.PageSize()),
		slog.Int("items", len(items)),
	)
	return items, nil
}
