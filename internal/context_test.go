package internal_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/session"
	"github.com/dmitrymomot/trellis/pkg/storage"
)

func TestContext_AddCookieKeepsLastPerName(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	c := internal.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))

	c.AddCookie("a=1; Path=/")
	c.AddCookie("b=1; Path=/")
	c.AddCookie("a=2; Path=/")
	require.NoError(t, c.NoContent(http.StatusNoContent))

	assert.Equal(t, []string{"b=1; Path=/", "a=2; Path=/"}, w.Header().Values("Set-Cookie"))
}

func TestContext_DirtySessionCommittedOnWrite(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	w := httptest.NewRecorder()
	c := internal.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), internal.WithContextSessions(store))

	c.Session().Set(internal.SessionUserKey, "u1")
	require.NoError(t, c.String(http.StatusOK, "ok"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	next := internal.NewContext(httptest.NewRecorder(), req, internal.WithContextSessions(store))
	assert.Equal(t, "u1", next.UserID())
}

func TestContext_CleanSessionNotCommitted(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	w := httptest.NewRecorder()
	c := internal.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), internal.WithContextSessions(store))

	_ = c.UserID()
	require.NoError(t, c.String(http.StatusOK, "ok"))
	assert.Empty(t, w.Header().Values("Set-Cookie"))
}

func TestContext_DestroySession(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	w := httptest.NewRecorder()
	c := internal.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), internal.WithContextSessions(store))

	c.DestroySession()
	require.NoError(t, c.NoContent(http.StatusNoContent))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestContext_CommitWithoutStore(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := c.CommitSession()
	require.ErrorIs(t, err, internal.ErrNoSessionStore)
}

func TestContext_VarsSeededPerRequest(t *testing.T) {
	t.Parallel()

	defaults := internal.Variables{"admin": nil, "site": "trellis"}
	a := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil), internal.WithContextVars(defaults))
	b := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil), internal.WithContextVars(defaults))

	internal.AddBodyClass(a, "admin")
	a.SetVar("site", "changed")

	assert.Equal(t, []string{"admin"}, internal.BodyClasses(a.Vars()))
	assert.Empty(t, internal.BodyClasses(b.Vars()))
	assert.Equal(t, "trellis", b.Var("site"))
	assert.Equal(t, "trellis", defaults["site"])
}

func TestContext_NotConfigured(t *testing.T) {
	t.Parallel()

	c := newTestContext(t, httptest.NewRequest(http.MethodGet, "/", nil))

	require.ErrorIs(t, c.Enqueue("rebuild_routes", nil), job.ErrNotConfigured)
	_, err := c.Storage()
	require.ErrorIs(t, err, storage.ErrNotConfigured)
	_, err = c.FileURL("uploads/a.png")
	require.True(t, errors.Is(err, storage.ErrNotConfigured))
}

func TestContext_SharedAcrossAcquire(t *testing.T) {
	t.Parallel()

	type key struct{}
	w := httptest.NewRecorder()
	c := internal.NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(key{}, "v")
	c.SetVar("section", "admin")

	again := internal.NewContext(c.Response(), c.Request())
	assert.Equal(t, "v", again.Get(key{}))
	assert.Equal(t, "admin", again.Var("section"))
}
