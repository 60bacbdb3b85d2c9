package internal_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/session"
)

func newTestContext(t *testing.T, req *http.Request, opts ...internal.ContextOption) internal.Context {
	t.Helper()
	return internal.NewContext(httptest.NewRecorder(), req, opts...)
}

func TestExtractor(t *testing.T) {
	t.Parallel()

	t.Run("empty sources returns false", func(t *testing.T) {
		t.Parallel()

		c := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil))
		v, ok := internal.NewExtractor().Extract(c)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("first non-empty source wins", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/?tenant=from-query", nil)
		req.Header.Set("X-Tenant", "from-header")
		c := newTestContext(t, req)

		ext := internal.NewExtractor(
			internal.FromHeader("X-Missing"),
			internal.FromHeader("X-Tenant"),
			internal.FromQuery("tenant"),
		)
		v, ok := ext.Extract(c)
		require.True(t, ok)
		require.Equal(t, "from-header", v)
	})

	t.Run("falls through to later sources", func(t *testing.T) {
		t.Parallel()

		c := newTestContext(t, httptest.NewRequest(http.MethodGet, "/?tenant=acme", nil))
		v, ok := internal.NewExtractor(internal.FromHeader("X-Tenant"), internal.FromQuery("tenant")).Extract(c)
		require.True(t, ok)
		require.Equal(t, "acme", v)
	})
}

func TestFromCookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	c := newTestContext(t, req)

	v, ok := internal.FromCookie("theme")(c)
	require.True(t, ok)
	require.Equal(t, "dark", v)

	_, ok = internal.FromCookie("missing")(c)
	require.False(t, ok)
}

func TestFromForm(t *testing.T) {
	t.Parallel()

	form := url.Values{"email": {"a@x.com"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c := newTestContext(t, req)

	v, ok := internal.FromForm("email")(c)
	require.True(t, ok)
	require.Equal(t, "a@x.com", v)
}

func TestFromSession(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret("test-secret-test-secret-test-sec")))
	sess := session.New(nil)
	sess.Set("user_id", "u1")
	sess.Set("count", 3)
	header, err := store.Commit(sess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, cookie.Merge(req, header))
	c := newTestContext(t, req, internal.WithContextSessions(store))

	v, ok := internal.FromSession("user_id")(c)
	require.True(t, ok)
	require.Equal(t, "u1", v)

	// JSON numbers come back as float64 and are formatted.
	v, ok = internal.FromSession("count")(c)
	require.True(t, ok)
	require.Equal(t, "3", v)

	_, ok = internal.FromSession("missing")(c)
	require.False(t, ok)
}

func TestFromVar(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil),
		internal.WithContextVars(internal.Variables{"tenant": "acme", "admin": true}))

	v, ok := internal.FromVar("tenant")(c)
	require.True(t, ok)
	require.Equal(t, "acme", v)

	_, ok = internal.FromVar("admin")(c)
	require.False(t, ok)
}
