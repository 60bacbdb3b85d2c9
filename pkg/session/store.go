package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/trellis/pkg/cookie"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "__session"

// Store parses sessions from requests and serializes them into Set-Cookie values.
type Store struct {
	cookies *cookie.Manager
	name    string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// NewStore creates a session store that signs with the given cookie manager.
func NewStore(cookies *cookie.Manager, opts ...StoreOption) *Store {
	s := &Store{
		cookies: cookies,
		name:    DefaultCookieName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the session cookie name.
func (s *Store) Name() string {
	return s.name
}

// Parse returns the session carried by r. A missing cookie, a bad signature
// or an undecodable payload all yield a fresh empty session.
func (s *Store) Parse(r *http.Request) *Session {
	payload, err := s.cookies.Read(r, s.name)
	if err != nil {
		return New(nil)
	}

	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return New(nil)
	}
	return New(values)
}

// Commit serializes the session and returns a Set-Cookie header value.
// The session is marked clean.
func (s *Store) Commit(sess *Session) (string, error) {
	payload, err := json.Marshal(sess.values)
	if err != nil {
		return "", errors.Join(ErrEncode, err)
	}

	signed, err := s.cookies.Sign(payload)
	if err != nil {
		return "", err
	}

	sess.ClearDirty()
	return s.cookies.Header(s.name, signed), nil
}

// Destroy returns a Set-Cookie header value that removes the session cookie.
func (s *Store) Destroy() string {
	return s.cookies.Expire(s.name)
}
