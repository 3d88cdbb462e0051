// Package auth provides YouTrack credentials and the session material attached to requests.
package auth

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Credentials holds YouTrack authentication credentials.
// Either Token or both Login and Password must be set.
type Credentials struct {
	Login    string
	Password string
	Token    string
}

// Valid reports whether credentials are configured.
func (c *Credentials) Valid() bool {
	return c != nil && (c.Token != "" || (c.Login != "" && c.Password != ""))
}

// UsesToken reports whether a permanent token replaces the cookie login.
func (c *Credentials) UsesToken() bool {
	return c != nil && c.Token != ""
}

// LoginForm returns the form body for the login endpoint.
func (c *Credentials) LoginForm() url.Values {
	return url.Values{
		"login":    {c.Login},
		"password": {c.Password},
	}
}

// Session is an authenticated session. It is immutable once built.
type Session struct {
	url     string
	cookies []*http.Cookie
	header  http.Header
}

// NewCookieSession builds a session from the cookies returned by a login call.
func NewCookieSession(baseURL string, cookies []*http.Cookie) *Session {
	kept := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		cp := *c
		kept = append(kept, &cp)
	}
	return &Session{
		url:     strings.TrimSuffix(baseURL, "/"),
		cookies: kept,
		header:  make(http.Header),
	}
}

// NewTokenSession builds a session that authenticates with a bearer token.
func NewTokenSession(baseURL, token string) *Session {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return &Session{
		url:    strings.TrimSuffix(baseURL, "/"),
		header: h,
	}
}

// BaseURL returns the URL the session was established against.
func (s *Session) BaseURL() string {
	return s.url
}

// Cookies returns a copy of the session cookies.
func (s *Session) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// Header returns a copy of the headers attached to every request.
func (s *Session) Header() http.Header {
	return s.header.Clone()
}

// HasCookie reports whether a cookie with the given name is present.
func (s *Session) HasCookie(name string) bool {
	return slices.ContainsFunc(s.cookies, func(c *http.Cookie) bool {
		return c.Name == name
	})
}
