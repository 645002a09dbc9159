package session

import (
	"context"
	"sync"
)

// Unauthenticated is what User reports before a successful login.
const Unauthenticated = ""

// Session is the per-connection record carrying the acting username.
// It holds no credentials; any non-empty name is accepted.
type Session struct {
	ID string

	mu   sync.RWMutex
	user string
}

// New returns a session record for id, optionally already logged in.
func New(id, user string) *Session {
	return &Session{ID: id, user: user}
}

// SetUser replaces the held username when name is non-empty and reports
// whether it did.
func (s *Session) SetUser(name string) bool {
	if name == "" {
		return false
	}
	s.mu.Lock()
	s.user = name
	s.mu.Unlock()
	return true
}

// User returns the held username or Unauthenticated.
func (s *Session) User() string {
	if s == nil {
		return Unauthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Authenticated() bool {
	return s.User() != Unauthenticated
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
