package internal_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// text renders a fixed string followed by its children.
func text(s string) func(internal.Props) templ.Component {
	return func(p internal.Props) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
			if p.Children != nil {
				return p.Children.Render(ctx, w)
			}
			return nil
		})
	}
}

// dataView renders the loader data of the node with %v.
func dataView(p internal.Props) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "[%v|%v]", p.LoaderData, p.ActionData)
		return err
	})
}

func newTestApp(t *testing.T, extra ...internal.Option) *internal.App {
	t.Helper()

	table := internal.NewRuntimeTable()
	table.Replace([]internal.RuntimeRoute{
		{Pattern: "/about/", RecordID: "42", Modules: []string{"layout", "page"}},
	})

	modules := []internal.Module{
		{
			ID:              "layout",
			AcceptsChildren: true,
			Component: func(p internal.Props) templ.Component {
				return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
					fmt.Fprintf(w, "<main data-section=%q>", p.Vars["section"])
					if p.Children != nil {
						if err := p.Children.Render(ctx, w); err != nil {
							return err
						}
					}
					_, err := io.WriteString(w, "</main>")
					return err
				})
			},
			Loader: func(c internal.Context) (internal.Result, error) {
				c.SetVar("section", "site")
				internal.AddBodyClass(c, "site")
				return internal.Ok(nil), nil
			},
		},
		{
			ID:        "home",
			Component: dataView,
			Loader: func(c internal.Context) (internal.Result, error) {
				return internal.Ok("section=" + c.Var("section").(string)), nil
			},
		},
		{
			ID:        "page",
			Component: dataView,
			Loader: func(c internal.Context) (internal.Result, error) {
				rt, ok := internal.MatchedRuntimeRoute(c)
				if !ok {
					return internal.Result{}, errors.New("no runtime route")
				}
				return internal.Ok("record=" + rt.RecordID), nil
			},
		},
		{
			ID:        "counter",
			Component: dataView,
			Action: func(c internal.Context) (internal.Result, error) {
				n := session.ValueOr(c.Session(), "count", 0.0)
				c.Session().Set("count", n+1)
				c.Session().Flash("notice", "saved")
				header, err := c.CommitSession()
				if err != nil {
					return internal.Result{}, err
				}
				return internal.Ok("acted").WithCookie(header), nil
			},
			Loader: func(c internal.Context) (internal.Result, error) {
				notice, _ := c.Session().Get("notice")
				return internal.Ok(fmt.Sprintf("count=%v notice=%v", session.ValueOr(c.Session(), "count", 0.0), notice)), nil
			},
		},
		{
			ID:        "form",
			Component: dataView,
			Action: func(c internal.Context) (internal.Result, error) {
				if c.Form("name") == "" {
					return internal.Invalid(map[string]string{"name": "required"}, map[string]string{"name": ""}), nil
				}
				return internal.Redirect("/form?saved=1").WithHeader("X-Saved", "yes"), nil
			},
		},
		{
			ID: "api",
			Loader: func(c internal.Context) (internal.Result, error) {
				return internal.Ok(map[string]string{"status": "ok"}), nil
			},
			Action: func(c internal.Context) (internal.Result, error) {
				return internal.Result{}, internal.ErrBadRequest("No id provided")
			},
		},
		{
			ID: "write-only",
			Action: func(c internal.Context) (internal.Result, error) {
				return internal.Ok(nil), nil
			},
		},
		{
			ID:        "private",
			Component: text("secret"),
			Loader: func(c internal.Context) (internal.Result, error) {
				return internal.Redirect("/login").WithCookie("flash=login-required; Path=/"), nil
			},
		},
		{
			ID:        "broken",
			Component: text("never"),
			Loader: func(c internal.Context) (internal.Result, error) {
				return internal.Result{}, errors.New("database exploded")
			},
		},
		{
			ID: "broken-view",
			Component: func(internal.Props) templ.Component {
				return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
					_, _ = io.WriteString(w, "<partial>")
					return errors.New("render failed")
				})
			},
		},
	}

	tagged := func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			c.SetHeader("X-Route", "tagged")
			return next(c)
		}
	}

	opts := []internal.Option{
		internal.WithCookieOptions(cookie.WithSecret(testSecret)),
		internal.WithSession(),
		internal.WithModules(modules...),
		internal.WithRoutes(
			internal.Route{Pattern: "/", Modules: []string{"layout", "home"}},
			internal.Route{Pattern: "/counter", Modules: []string{"counter"}},
			internal.Route{Pattern: "/form", Modules: []string{"layout", "form"}},
			internal.Route{Pattern: "/api/*", Modules: []string{"api"}, Middleware: []internal.Middleware{tagged}},
			internal.Route{Pattern: "/write-only", Modules: []string{"write-only"}},
			internal.Route{Pattern: "/private", Modules: []string{"layout", "private"}},
			internal.Route{Pattern: "/broken", Modules: []string{"broken"}},
			internal.Route{Pattern: "/broken-view", Modules: []string{"broken-view"}},
		),
		internal.WithRuntimeRoutes(table),
	}
	return internal.New(append(opts, extra...)...)
}

func serve(app *internal.App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestApp_RendersChain(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	w := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `<div id="root"><main data-section="site">[section=site|<nil>]</main></div>`)
	assert.Contains(t, body, `<body class="site">`)
}

func TestApp_SameRequestTwiceIsIdentical(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	first := serve(app, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	second := serve(app, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, `class="site"`), "variables do not leak between requests")
}

func TestApp_NotFound(t *testing.T) {
	t.Parallel()

	w := serve(newTestApp(t), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	custom := newTestApp(t, internal.WithNotFoundHandler(func(c internal.Context) error {
		return c.String(http.StatusNotFound, "custom 404")
	}))
	w = serve(custom, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "custom 404", w.Body.String())
}

func TestApp_RuntimeRoutes(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/about", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/about/", w.Header().Get("Location"))

	w = serve(app, httptest.NewRequest(http.MethodGet, "/about?ref=nav", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/about/?ref=nav", w.Header().Get("Location"))

	w = serve(app, httptest.NewRequest(http.MethodGet, "/about/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[record=42|<nil>]")

	w = serve(app, postForm("/about/", url.Values{}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_RuntimeRoutesSwap(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.RuntimeRoutes().Replace([]internal.RuntimeRoute{
		{Pattern: "/contact/", RecordID: "7", Modules: []string{"layout", "page"}},
	})

	assert.Equal(t, http.StatusNotFound, serve(app, httptest.NewRequest(http.MethodGet, "/about/", nil)).Code)
	w := serve(app, httptest.NewRequest(http.MethodGet, "/contact/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "record=7")
}

func TestApp_PostReadsOwnCookieWrites(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	w := serve(app, postForm("/counter", url.Values{}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[count=1 notice=saved|acted]")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "session cookie is sent once")
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)

	// The flash was consumed by the loader of the POST request.
	req := httptest.NewRequest(http.MethodGet, "/counter", nil)
	req.AddCookie(cookies[0])
	w = serve(app, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[count=1 notice=<nil>|<nil>]")
}

func TestApp_ActionResults(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	t.Run("invalid re-renders the form", func(t *testing.T) {
		w := serve(app, postForm("/form", url.Values{"name": {""}}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "map[name:required]")
	})

	t.Run("redirect keeps headers", func(t *testing.T) {
		w := serve(app, postForm("/form", url.Values{"name": {"A"}}))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/form?saved=1", w.Header().Get("Location"))
		assert.Equal(t, "yes", w.Header().Get("X-Saved"))
	})

	t.Run("loader redirect with cookie", func(t *testing.T) {
		w := serve(app, httptest.NewRequest(http.MethodGet, "/private", nil))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.Contains(t, w.Header().Values("Set-Cookie"), "flash=login-required; Path=/")
		assert.NotContains(t, w.Body.String(), "secret")
	})
}

func TestApp_DataOnlyLeaf(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "tagged", w.Header().Get("X-Route"))

	w = serve(app, postForm("/api/delete", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No id provided", w.Body.String())

	w = serve(app, httptest.NewRequest(http.MethodGet, "/write-only", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(app, postForm("/write-only", url.Values{}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null\n", w.Body.String())
}

func TestApp_Errors(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database exploded")

	w = serve(app, httptest.NewRequest(http.MethodGet, "/broken-view", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "<partial>")

	w = serve(app, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestApp_CustomErrorHandler(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, internal.WithErrorHandler(func(c internal.Context, err error) error {
		return c.JSON(http.StatusTeapot, map[string]string{"error": err.Error()})
	}))

	w := serve(app, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"error":"broken loader: database exploded"}`, w.Body.String())
}

func TestApp_HTTPHandlerAndHealth(t *testing.T) {
	t.Parallel()

	app := newTestApp(t,
		internal.WithHTTPHandler("/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}), http.MethodGet),
		internal.WithHealthChecks(internal.WithReadinessCheck("db", func(context.Context) error { return nil })),
	)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())

	w = serve(app, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(app, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_GlobalMiddlewareSharesContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	app := newTestApp(t,
		internal.WithMiddleware(func(next internal.HandlerFunc) internal.HandlerFunc {
			return func(c internal.Context) error {
				c.Set(key{}, "from-middleware")
				c.SetVar("section", "overridden-later")
				return next(c)
			}
		}),
		internal.WithModules(internal.Module{
			ID:        "probe",
			Component: dataView,
			Loader: func(c internal.Context) (internal.Result, error) {
				return internal.Ok(internal.ContextValue[string](c, key{}) + "/" + c.Var("section").(string)), nil
			},
		}),
		internal.WithRoutes(internal.Route{Pattern: "/probe", Modules: []string{"probe"}}),
	)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[from-middleware/overridden-later|")
}

func TestApp_UnknownModulePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		internal.New(internal.WithRoutes(internal.Route{Pattern: "/", Modules: []string{"missing"}}))
	})
}
