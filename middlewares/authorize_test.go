package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/role"
	"github.com/dmitrymomot/trellis/pkg/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var users = middlewares.RoleResolverFunc(func(_ context.Context, id string) (role.Role, error) {
	switch id {
	case "sub":
		return role.Subscriber, nil
	case "ed":
		return role.Editor, nil
	case "adm":
		return role.Admin, nil
	case "broken":
		return "", errors.New("db down")
	}
	return "", middlewares.ErrUserNotFound
})

func authorizedRequest(t *testing.T, store *session.Store, userID string) (internal.Context, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	if userID != "" {
		header, err := store.Commit(session.New(map[string]any{internal.SessionUserKey: userID}))
		require.NoError(t, err)
		ck, err := http.ParseSetCookie(header)
		require.NoError(t, err)
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return internal.NewContext(rec, req, internal.WithContextSessions(store)), rec
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	next := func(c internal.Context) error {
		return c.String(http.StatusOK, string(middlewares.CurrentRole(c)))
	}

	tests := []struct {
		name     string
		user     string
		required role.Role
		status   int
		location string
		body     string
	}{
		{"anonymous", "", role.Subscriber, http.StatusFound, "/auth/login", ""},
		{"subscriber on editor route", "sub", role.Editor, http.StatusFound, "/admin/insufficient-permissions", ""},
		{"editor on editor route", "ed", role.Editor, http.StatusOK, "", "editor"},
		{"editor on admin route", "ed", role.Admin, http.StatusFound, "/admin/insufficient-permissions", ""},
		{"admin on admin route", "adm", role.Admin, http.StatusOK, "", "admin"},
		{"admin on subscriber route", "adm", role.Subscriber, http.StatusOK, "", "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, rec := authorizedRequest(t, store, tt.user)
			err := middlewares.Authorize(tt.required, users)(next)(c)

			require.NoError(t, err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthorize_UnknownUserClearsSession(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	c, rec := authorizedRequest(t, store, "ghost")

	err := middlewares.Authorize(role.Subscriber, users)(func(internal.Context) error {
		t.Fatal("next must not run")
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	_, ok := store.Parse(req).Get(internal.SessionUserKey)
	assert.False(t, ok)
}

func TestAuthorize_ResolverError(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	c, _ := authorizedRequest(t, store, "broken")

	err := middlewares.Authorize(role.Subscriber, users)(func(internal.Context) error { return nil })(c)
	require.EqualError(t, err, "db down")
}

func TestAuthorize_CustomPaths(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	c, rec := authorizedRequest(t, store, "sub")

	mw := middlewares.Authorize(role.Admin, users,
		middlewares.WithLoginPath("/login"),
		middlewares.WithForbiddenPath("/nope"),
	)
	require.NoError(t, mw(func(internal.Context) error { return nil })(c))
	assert.Equal(t, "/nope", rec.Header().Get("Location"))
}

func TestUserIDExtractor(t *testing.T) {
	t.Parallel()

	store := session.NewStore(cookie.New(cookie.WithSecret(testSecret)))
	c, _ := authorizedRequest(t, store, "ed")

	var captured context.Context
	err := middlewares.Authorize(role.Editor, users)(func(c internal.Context) error {
		captured = c.Context()
		return nil
	})(c)
	require.NoError(t, err)

	attr, ok := middlewares.UserIDExtractor()(captured)
	require.True(t, ok)
	assert.Equal(t, "ed", attr.Value.String())
}
