package youtrack

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
)

// Session supplies the base URL and the authentication material attached to
// every outgoing request.
type Session interface {
	BaseURL() string
	Cookies() []*http.Cookie
	Header() http.Header
}

// LoginFunc establishes a new session.
type LoginFunc func(ctx context.Context) (Session, error)

// SessionCache holds one session, created on first use and shared read-only
// afterwards. At most one login runs at a time; callers arriving during a
// login wait for its result. Failed logins are not cached. The zero value is
// ready to use.
type SessionCache struct {
	mu      sync.Mutex
	current atomic.Pointer[sessionSlot]
}

type sessionSlot struct {
	session Session
}

// Get returns the cached session, calling login if the cache is empty.
func (c *SessionCache) Get(ctx context.Context, login LoginFunc) (Session, error) {
	if slot := c.current.Load(); slot != nil {
		return slot.session, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if slot := c.current.Load(); slot != nil {
		return slot.session, nil
	}

	session, err := login(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(&sessionSlot{session: session})
	return session, nil
}

// Peek returns the cached session without logging in.
func (c *SessionCache) Peek() (Session, bool) {
	slot := c.current.Load()
	if slot == nil {
		return nil, false
	}
	return slot.session, true
}

// Invalidate drops the cached session so the next Get logs in again.
func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(nil)
}
