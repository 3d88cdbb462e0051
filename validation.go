package youtrack

import (
	"net/http"

	"github.com/tphakala/go-youtrack/internal/api"
)

// RawResponse is an HTTP response whose status has not been interpreted yet.
type RawResponse = api.Response

// Request describes a single API call.
type Request = api.Request

// ResponseCheck is one link of a validation chain. It inspects a single status
// predicate and either fails or returns the response unchanged.
type ResponseCheck func(*RawResponse) (*RawResponse, error)

// Identity passes the response through.
func Identity(resp *RawResponse) (*RawResponse, error) {
	return resp, nil
}

// RejectStatus returns a link that fails with the given kind when the response
// carries code. The body of a rejected response is closed.
func RejectStatus(code int, kind ErrorKind) ResponseCheck {
	return func(resp *RawResponse) (*RawResponse, error) {
		if resp.StatusCode != code {
			return resp, nil
		}
		_ = resp.Close()
		return nil, statusError(resp, kind)
	}
}

// ValidationChain applies its links in order, innermost first. The first link
// that fails stops the chain.
type ValidationChain struct {
	links []ResponseCheck
}

// NewValidationChain builds a chain from links listed innermost first.
func NewValidationChain(links ...ResponseCheck) *ValidationChain {
	return &ValidationChain{links: append([]ResponseCheck(nil), links...)}
}

// DefaultValidationChain returns the chain every API call goes through:
// 400 and 500 are transport failures, 403 and 401 are authorization failures.
// Any other status reaches the caller untouched.
func DefaultValidationChain() *ValidationChain {
	return NewValidationChain(
		Identity,
		RejectStatus(http.StatusBadRequest, KindTransport),
		RejectStatus(http.StatusInternalServerError, KindTransport),
		RejectStatus(http.StatusForbidden, KindAuthorization),
		RejectStatus(http.StatusUnauthorized, KindAuthorization),
	)
}

// Validate runs resp through the chain.
func (c *ValidationChain) Validate(resp *RawResponse) (*RawResponse, error) {
	var err error
	for _, link := range c.links {
		resp, err = link(resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Len returns the number of links.
func (c *ValidationChain) Len() int {
	return len(c.links)
}

// isSuccess reports whether the status allows the body to be read as a result.
func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// requireSuccess turns any status the chain let through but that is not 2xx
// into a transport error.
func requireSuccess(resp *RawResponse) (*RawResponse, error) {
	if isSuccess(resp.StatusCode) {
		return resp, nil
	}
	_ = resp.Close()
	return nil, statusError(resp, KindTransport)
}
