package youtrack

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common failure modes.
var (
	ErrNoCredentials = errors.New("youtrack: no credentials configured")
	ErrNoBaseURL     = errors.New("youtrack: no base URL configured")

	// ErrInvalidArgument marks requests rejected before anything is sent.
	ErrInvalidArgument = errors.New("youtrack: invalid argument")

	// ErrNoSuchElement is returned by Next when no item is buffered.
	ErrNoSuchElement = errors.New("youtrack: no more elements")
)

// ErrorKind classifies failures surfaced by the client.
type ErrorKind int

const (
	// KindUnknown marks errors that did not originate in this package.
	KindUnknown ErrorKind = iota
	// KindTransport covers malformed requests, server faults and network failures.
	KindTransport
	// KindAuthorization covers 401 and 403 responses. The server also answers 403
	// for resources that do not exist, so the two cannot be told apart.
	KindAuthorization
	// KindParse covers malformed response payloads.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthorization:
		return "authorization"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err, looking through wrapped errors.
func KindOf(err error) ErrorKind {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return KindAuthorization
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}
	return KindUnknown
}

// APIError describes a failed API call.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
	URL        string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("youtrack: API error %d: %s (request_id=%s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("youtrack: API error %d: %s", e.StatusCode, e.Message)
}

// TransportError indicates a malformed request, a server fault, an unexpected
// status or a network failure. It is never retried by the client.
type TransportError struct {
	APIError
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("youtrack: transport error: %v", e.Err)
	}
	return fmt.Sprintf("youtrack: transport error %d: %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *TransportError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// AuthorizationError indicates rejected or missing credentials (401/403).
// Callers may retry with a fresh session.
type AuthorizationError struct {
	APIError
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("youtrack: authorization failed (%d): %s", e.StatusCode, e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *AuthorizationError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ParseError indicates a response payload that could not be decoded.
// The server is trusted to send well-formed documents, so this is a contract
// violation rather than a usage error.
type ParseError struct {
	Err     error
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("youtrack: malformed response: %v (near %q)", e.Err, e.Snippet)
	}
	return fmt.Sprintf("youtrack: malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const snippetLen = 64

func newParseError(err error, data []byte) *ParseError {
	snippet := data
	if len(snippet) > snippetLen {
		snippet = snippet[:snippetLen]
	}
	return &ParseError{Err: err, Snippet: string(snippet)}
}

// statusError builds the typed error for a rejected response.
func statusError(resp *RawResponse, kind ErrorKind) error {
	base := APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RequestID:  resp.RequestID,
		URL:        resp.URL,
	}
	if kind == KindAuthorization {
		return &AuthorizationError{APIError: base}
	}
	return &TransportError{APIError: base}
}

// transportFailure wraps an error raised before any response was received.
func transportFailure(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return &TransportError{
		APIError: APIError{Message: err.Error()},
		Err:      err,
	}
}
