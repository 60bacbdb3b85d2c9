package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// Errors.
var (
	ErrNotFound  = errors.New("cookie: not found")
	ErrNoSecret  = errors.New("cookie: secret required")
	ErrBadSig    = errors.New("cookie: invalid signature")
	ErrMalformed = errors.New("cookie: malformed set-cookie value")
)

// MinSecretLength is the minimum accepted secret size in bytes.
const MinSecretLength = 32

// Manager signs cookie values and renders them with shared attributes.
type Manager struct {
	secret   []byte // nil = signing disabled
	domain   string
	path     string
	maxAge   int
	secure   bool
	httpOnly bool
	sameSite http.SameSite
}

// Option configures the Manager.
type Option func(*Manager)

// New creates a cookie Manager with the given options.
// Defaults: Path=/, HttpOnly, SameSite=Lax, session lifetime.
func New(opts ...Option) *Manager {
	m := &Manager{
		path:     "/",
		httpOnly: true,
		sameSite: http.SameSiteLaxMode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithSecret sets the signing secret.
// Secrets shorter than MinSecretLength are ignored.
func WithSecret(secret string) Option {
	return func(m *Manager) {
		if len(secret) >= MinSecretLength {
			m.secret = []byte(secret)
		}
	}
}

// WithDomain sets the cookie domain.
func WithDomain(domain string) Option {
	return func(m *Manager) {
		m.domain = domain
	}
}

// WithPath sets the cookie path.
func WithPath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.path = path
		}
	}
}

// WithMaxAge sets Max-Age in seconds. Zero keeps a browser-session cookie.
func WithMaxAge(seconds int) Option {
	return func(m *Manager) {
		m.maxAge = seconds
	}
}

// WithSecure sets the Secure flag.
func WithSecure(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithHTTPOnly sets the HttpOnly flag.
func WithHTTPOnly(httpOnly bool) Option {
	return func(m *Manager) {
		m.httpOnly = httpOnly
	}
}

// WithSameSite sets the SameSite attribute.
func WithSameSite(ss http.SameSite) Option {
	return func(m *Manager) {
		m.sameSite = ss
	}
}

// Sign encodes payload and appends its HMAC signature.
func (m *Manager) Sign(payload []byte) (string, error) {
	if m.secret == nil {
		return "", ErrNoSecret
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	return encoded + "." + base64.RawStdEncoding.EncodeToString(m.mac(encoded)), nil
}

// Verify checks the signature of a signed value and returns the decoded payload.
func (m *Manager) Verify(value string) ([]byte, error) {
	if m.secret == nil {
		return nil, ErrNoSecret
	}

	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return nil, ErrBadSig
	}
	encoded, rawSig := value[:idx], value[idx+1:]

	// Only the canonical unpadded encoding verifies: the unused low bits of
	// the last character and any padding would otherwise be malleable.
	want := base64.RawStdEncoding.EncodeToString(m.mac(encoded))
	if !hmac.Equal([]byte(rawSig), []byte(want)) {
		return nil, ErrBadSig
	}

	payload, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, ErrBadSig
	}
	return payload, nil
}

// Read returns the verified payload of the named cookie.
// Returns ErrNotFound if the cookie is absent and ErrBadSig if it was tampered with.
func (m *Manager) Read(r *http.Request, name string) ([]byte, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.Verify(c.Value)
}

// Cookie builds a cookie with the manager's attributes.
func (m *Manager) Cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.path,
		Domain:   m.domain,
		MaxAge:   m.maxAge,
		Secure:   m.secure,
		HttpOnly: m.httpOnly,
		SameSite: m.sameSite,
	}
}

// Header renders a Set-Cookie header value.
func (m *Manager) Header(name, value string) string {
	return m.Cookie(name, value).String()
}

// Expire renders a Set-Cookie header value that removes the cookie.
func (m *Manager) Expire(name string) string {
	c := m.Cookie(name, "")
	c.MaxAge = -1
	return c.String()
}

func (m *Manager) mac(encoded string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(encoded))
	return h.Sum(nil)
}

// Name extracts the cookie name from a Set-Cookie header value.
func Name(setCookie string) (string, error) {
	c, err := http.ParseSetCookie(setCookie)
	if err != nil {
		return "", errors.Join(ErrMalformed, err)
	}
	return c.Name, nil
}

// Merge applies a Set-Cookie header value to the Cookie header of r.
// An existing cookie with the same name is replaced; an expired cookie is removed.
func Merge(r *http.Request, setCookie string) error {
	set, err := http.ParseSetCookie(setCookie)
	if err != nil {
		return errors.Join(ErrMalformed, err)
	}

	kept := make([]string, 0, len(r.Cookies())+1)
	for _, c := range r.Cookies() {
		if c.Name == set.Name {
			continue
		}
		kept = append(kept, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	if set.MaxAge >= 0 && set.Value != "" {
		kept = append(kept, (&http.Cookie{Name: set.Name, Value: set.Value}).String())
	}

	if len(kept) == 0 {
		r.Header.Del("Cookie")
		return nil
	}
	r.Header.Set("Cookie", strings.Join(kept, "; "))
	return nil
}
