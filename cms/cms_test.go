package cms_test

import (
	"context"
	"encoding/json"
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

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "password123"
)

type harness struct {
	t      *testing.T
	app    *trellis.App
	cms    *cms.CMS
	store  *memstore.Store
	cookie *http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memstore.New()
	seed := cms.DefaultSeed()
	seed.Users = []cms.SeedUser{
		{Name: "Admin", Email: "admin@example.com", Password: testPassword, Role: role.Admin},
		{Name: "Editor", Email: "editor@example.com", Password: testPassword, Role: role.Editor},
		{Name: "Reader", Email: "reader@example.com", Password: testPassword, Role: role.Subscriber},
	}
	_, err := seed.Apply(context.Background(), store)
	require.NoError(t, err)

	c := cms.New(store, trellis.NewRuntimeTable())
	require.NoError(t, c.Rebuild(context.Background()))

	opts := append([]trellis.Option{
		trellis.WithCookieOptions(trellis.WithCookieSecret(testSecret)),
		trellis.WithSession(),
	}, c.Options()...)

	return &harness{t: t, app: trellis.New(opts...), cms: c, store: store}
}

// do serves req with the current session cookie and keeps the cookie the
// response sets.
func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	h.app.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name != session.DefaultCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			h.cookie = nil
			continue
		}
		h.cookie = ck
	}
	return w
}

func (h *harness) get(target string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (h *harness) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) login(email string) {
	h.t.Helper()
	w := h.post("/auth/login", url.Values{"email": {email}, "password": {testPassword}})
	require.Equal(h.t, http.StatusFound, w.Code)
	require.Equal(h.t, "/admin", w.Header().Get("Location"))
	require.NotNil(h.t, h.cookie)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("anonymous users are sent to login", func(t *testing.T) {
		h := newHarness(t)
		w := h.get("/admin")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	})

	t.Run("login form renders", func(t *testing.T) {
		h := newHarness(t)
		w := h.get("/auth/login")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `name="email"`)
		assert.Contains(t, w.Body.String(), `<body class="auth">`)
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t)
		w := h.post("/auth/login", url.Values{"email": {"nope"}, "password": {"short"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `value="nope"`)
	})

	t.Run("wrong password", func(t *testing.T) {
		h := newHarness(t)
		w := h.post("/auth/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong-password"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "invalid email or password")
	})

	t.Run("success and logout", func(t *testing.T) {
		h := newHarness(t)
		h.login("ADMIN@example.com")

		w := h.get("/admin")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Dashboard")

		w = h.post("/auth/logout", url.Values{})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))

		w = h.get("/admin")
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	})

	t.Run("get keeps the session", func(t *testing.T) {
		h := newHarness(t)
		h.login("admin@example.com")

		w := h.get("/auth/logout")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))
		require.NotNil(t, h.cookie)

		w = h.get("/admin")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPI(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	page, err := h.store.PostType(ctx, cms.PagePostType)
	require.NoError(t, err)
	post, err := h.store.SavePost(ctx, cms.Post{PostTypeID: page.ID, Title: "About", Slug: "about"})
	require.NoError(t, err)
	require.NoError(t, h.cms.Rebuild(ctx))

	t.Run("anonymous users are sent to login", func(t *testing.T) {
		h := newHarness(t)
		w := h.get(cms.APIPrefix + "/runtime-routes")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	})

	t.Run("runtime routes", func(t *testing.T) {
		h.login("admin@example.com")
		w := h.get(cms.APIPrefix + "/runtime-routes")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

		var routes []trellis.RuntimeRoute
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routes))
		assert.Contains(t, routes, trellis.RuntimeRoute{
			Pattern:  "/about/",
			RecordID: post.ID,
			Modules:  []string{cms.ModulePage},
		})
	})

	t.Run("runtime routes need admin", func(t *testing.T) {
		h := newHarness(t)
		h.login("editor@example.com")
		w := h.get(cms.APIPrefix + "/runtime-routes")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin/insufficient-permissions", w.Header().Get("Location"))
	})

	t.Run("post by path or query", func(t *testing.T) {
		h.login("admin@example.com")
		for _, target := range []string{
			cms.APIPrefix + "/posts/" + post.ID,
			cms.APIPrefix + "/posts?id=" + post.ID,
		} {
			w := h.get(target)
			require.Equal(t, http.StatusOK, w.Code, target)

			var got cms.Post
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, post.ID, got.ID)
			assert.Equal(t, "About", got.Title)
		}
	})

	t.Run("post errors", func(t *testing.T) {
		h.login("admin@example.com")
		assert.Equal(t, http.StatusNotFound, h.get(cms.APIPrefix+"/posts/missing").Code)
		assert.Equal(t, http.StatusBadRequest, h.get(cms.APIPrefix+"/posts").Code)
	})
}

func TestRoleGates(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login("reader@example.com")

	w := h.get("/admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `href="/admin/users"`)

	w = h.get("/admin/posts")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/insufficient-permissions", w.Header().Get("Location"))

	w = h.get("/admin/insufficient-permissions")
	assert.Equal(t, http.StatusOK, w.Code)

	editor := newHarness(t)
	editor.login("editor@example.com")
	assert.Equal(t, http.StatusOK, editor.get("/admin/posts").Code)
	assert.Equal(t, "/admin/insufficient-permissions", editor.get("/admin/users").Header().Get("Location"))
}

func TestUsers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login("admin@example.com")

	w := h.post("/admin/users/edit", url.Values{
		"name": {"A"}, "email": {"a@x.com"}, "password": {"pw"}, "role": {"editor"},
	})
	require.Equal(t, http.StatusFound, w.Code)

	created, err := h.store.UserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, role.Editor, created.Role)
	assert.Equal(t, "/admin/users/edit?id="+created.ID, w.Header().Get("Location"))

	w = h.get(w.Header().Get("Location"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User created successfully")
	assert.Contains(t, w.Body.String(), `value="a@x.com"`)

	t.Run("duplicate email", func(t *testing.T) {
		w := h.post("/admin/users/edit", url.Values{
			"name": {"B"}, "email": {"A@x.com"}, "password": {"pw"}, "role": {"editor"},
		})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin/users/edit", w.Header().Get("Location"))
	})

	t.Run("missing password on create", func(t *testing.T) {
		w := h.post("/admin/users/edit", url.Values{
			"name": {"C"}, "email": {"c@x.com"}, "role": {"admin"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		_, err := h.store.UserByEmail(context.Background(), "c@x.com")
		assert.ErrorIs(t, err, cms.ErrNotFound)
	})

	t.Run("update keeps the password", func(t *testing.T) {
		w := h.post("/admin/users/edit?id="+created.ID, url.Values{
			"name": {"A2"}, "email": {"a@x.com"}, "role": {"admin"},
		})
		require.Equal(t, http.StatusFound, w.Code)

		u, err := h.store.User(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "A2", u.Name)
		assert.Equal(t, role.Admin, u.Role)
		assert.Equal(t, created.PasswordHash, u.PasswordHash)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := h.get("/admin/users/edit?id=missing")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin/users", w.Header().Get("Location"))
	})
}

func TestPosts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login("editor@example.com")
	ctx := context.Background()

	page, err := h.store.PostType(ctx, cms.PagePostType)
	require.NoError(t, err)
	group, err := h.store.SaveFieldGroup(ctx, cms.FieldGroup{
		Name:        "Page fields",
		PostTypeIDs: []string{page.ID},
		Fields: []cms.Field{
			{Name: "Body", Slug: "body", Type: cms.FieldMarkdown},
			{Name: "Order", Slug: "order", Type: cms.FieldNumber},
		},
	})
	require.NoError(t, err)
	body, order := group.Fields[0], group.Fields[1]

	t.Run("unknown post type", func(t *testing.T) {
		w := h.get("/admin/posts?postType=nope")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))
	})

	t.Run("invalid number", func(t *testing.T) {
		w := h.post("/admin/posts/edit?postType=page", url.Values{
			"title":                {"About"},
			cms.FieldKey(order.ID): {"many"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `value="many"`)
	})

	t.Run("create publishes a runtime route", func(t *testing.T) {
		w := h.post("/admin/posts/edit?postType=page", url.Values{
			"title":               {"About"},
			cms.FieldKey(body.ID): {"**hello**"},
		})
		require.Equal(t, http.StatusFound, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/admin/posts/edit?postType=page&id="))

		w = h.get("/about")
		assert.Equal(t, http.StatusMovedPermanently, w.Code)
		assert.Equal(t, "/about/", w.Header().Get("Location"))

		w = h.get("/about/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Page: About")
		assert.Contains(t, w.Body.String(), "<strong>hello</strong>")
		assert.Contains(t, w.Body.String(), "<title>About</title>")
	})

	t.Run("duplicate slug", func(t *testing.T) {
		w := h.post("/admin/posts/edit?postType=page", url.Values{"title": {"About"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "is already taken")
	})

	t.Run("list", func(t *testing.T) {
		w := h.get("/admin/posts?postType=page")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "About")
	})
}

func TestFieldGroups(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login("editor@example.com")
	ctx := context.Background()

	post, err := h.store.PostType(ctx, "post")
	require.NoError(t, err)

	w := h.post("/admin/field-groups/edit", url.Values{
		"name":           {"Article"},
		"postTypes":      {post.ID},
		"fields[0].name": {"Sub Title"},
		"fields[0].type": {"text"},
		"fields[1].name": {""},
		"fields[1].type": {"text"},
	})
	require.Equal(t, http.StatusFound, w.Code)

	groups, err := h.store.FieldGroupsFor(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Fields, 1)
	assert.Equal(t, "sub_title", groups[0].Fields[0].Slug)
	assert.Equal(t, "/admin/field-groups/edit?id="+groups[0].ID, w.Header().Get("Location"))

	t.Run("unknown field type", func(t *testing.T) {
		w := h.post("/admin/field-groups/edit", url.Values{
			"name":           {"Broken"},
			"fields[0].name": {"X"},
			"fields[0].type": {"video"},
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("delete without id", func(t *testing.T) {
		w := h.post("/admin/field-groups/delete", url.Values{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"No id provided"}`, w.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		w := h.post("/admin/field-groups/delete", url.Values{"id": {groups[0].ID}})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin/field-groups", w.Header().Get("Location"))

		_, err := h.store.FieldGroup(ctx, groups[0].ID)
		assert.ErrorIs(t, err, cms.ErrNotFound)
	})
}

func TestRuntimeRoutesRebuild(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login("admin@example.com")
	ctx := context.Background()

	pt, err := h.store.PostType(ctx, "post")
	require.NoError(t, err)
	_, err = h.store.SavePost(ctx, cms.Post{PostTypeID: pt.ID, Title: "Hello", Slug: "hello"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, h.get("/post/hello/").Code)

	w := h.post("/admin/settings/runtime-routes", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	w = h.get("/post/hello/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Page: Hello")
}
