package trellis_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/cms"
	"github.com/dmitrymomot/trellis/cms/memstore"
	"github.com/dmitrymomot/trellis/pkg/role"
	"github.com/dmitrymomot/trellis/pkg/session"
)

type client struct {
	t      *testing.T
	app    *trellis.App
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.app.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.DefaultCookieName {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// newSite serves the CMS on an in-memory store and logs in as admin.
func newSite(t *testing.T, seeded bool) (*client, *cms.CMS) {
	t.Helper()

	ctx := context.Background()
	store := memstore.New()
	if seeded {
		_, err := cms.DefaultSeed().Apply(ctx, store)
		require.NoError(t, err)
	}
	_, err := cms.EnsureAdmin(ctx, store, "Admin", "admin@example.com", "password123")
	require.NoError(t, err)

	site := cms.New(store, trellis.NewRuntimeTable())
	require.NoError(t, site.Rebuild(ctx))

	opts := append([]trellis.Option{
		trellis.WithCookieOptions(trellis.WithCookieSecret("0123456789abcdef0123456789abcdef")),
		trellis.WithSession(),
	}, site.Options()...)

	c := &client{t: t, app: trellis.New(opts...)}
	w := c.post("/auth/login", url.Values{"email": {"admin@example.com"}, "password": {"password123"}})
	require.Equal(t, http.StatusFound, w.Code)
	return c, site
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	c, site := newSite(t, true)
	w := c.post("/admin/users/edit", url.Values{
		"name":     {"A"},
		"email":    {"a@x.com"},
		"password": {"pw"},
		"role":     {string(role.Editor)},
	})
	require.Equal(t, http.StatusFound, w.Code)

	u, err := site.Store().UserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	assert.Equal(t, role.Editor, u.Role)
	assert.Equal(t, "/admin/users/edit?id="+u.ID, w.Header().Get("Location"))

	w = c.get(w.Header().Get("Location"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User created successfully")

	w = c.get("/admin/users/edit?id=" + u.ID)
	assert.NotContains(t, w.Body.String(), "User created successfully", "flashes are read once")
}

func TestUnknownPostType(t *testing.T) {
	t.Parallel()

	c, _ := newSite(t, true)
	w := c.get("/admin/posts?postType=page")
	require.Equal(t, http.StatusOK, w.Code, "the default seed has pages")

	c, _ = newSite(t, false)
	w = c.get("/admin/posts?postType=page")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
}

func TestRuntimePage(t *testing.T) {
	t.Parallel()

	c, site := newSite(t, true)
	ctx := context.Background()
	page, err := site.Store().PostType(ctx, cms.PagePostType)
	require.NoError(t, err)
	_, err = site.Store().SavePost(ctx, cms.Post{PostTypeID: page.ID, Title: "About", Slug: "about"})
	require.NoError(t, err)
	require.NoError(t, site.Rebuild(ctx))

	w := c.get("/about")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/about/", w.Header().Get("Location"))

	w = c.get("/about/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Page: About")

	w = c.get("/missing/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
