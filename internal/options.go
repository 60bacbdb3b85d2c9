package internal

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/trellis/pkg/bundle"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/health"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/session"
	"github.com/dmitrymomot/trellis/pkg/storage"
)

// Option configures the application.
type Option func(*App)

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided and wraps every request,
// including static routes and runtime routes.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

// WithHandlers registers handlers that declare plain routes next to the
// module routes. Each handler's Routes method is called during setup.
func WithHandlers(h ...Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, h...)
	}
}

// WithModules registers route modules.
func WithModules(mods ...Module) Option {
	return func(a *App) {
		for _, m := range mods {
			a.registry.Register(m)
		}
	}
}

// WithRoutes appends static routes. Routes are matched in the order they
// are added; the first match wins.
//
// Example:
//
//	trellis.WithRoutes(
//	    trellis.Route{Pattern: "/admin/users", Modules: []string{"routes/admin", "routes/admin/users"}},
//	    trellis.Route{Pattern: "/admin/*", Modules: []string{"routes/admin", "routes/admin/dashboard"}},
//	)
func WithRoutes(routes ...Route) Option {
	return func(a *App) {
		a.routes = append(a.routes, routes...)
	}
}

// WithRuntimeRoutes enables routes resolved from content at runtime.
// The table is shared with whatever rebuilds it.
func WithRuntimeRoutes(t *RuntimeTable) Option {
	return func(a *App) {
		a.runtime = t
	}
}

// WithVars sets the default variables every request starts with.
// "bodyClasses" always starts as a fresh empty list.
func WithVars(vars Variables) Option {
	return func(a *App) {
		a.vars = vars
	}
}

// WithTitle sets the document title used when a request sets none.
func WithTitle(title string) Option {
	return func(a *App) {
		a.renderer.Title = title
	}
}

// WithBundler enables client bundles. entry is the hydration entry point
// relative to the bundler root. Bundle files are served under /dist/ by
// WithAssets.
func WithBundler(b bundle.Bundler, entry string) Option {
	return func(a *App) {
		a.bundler = b
		a.entry = entry
	}
}

// WithStylesheet links a stylesheet from every rendered document.
func WithStylesheet(href string) Option {
	return func(a *App) {
		a.renderer.Stylesheets = append(a.renderer.Stylesheets, href)
	}
}

// WithLiveReload appends script to every rendered document.
func WithLiveReload(script string) Option {
	return func(a *App) {
		a.renderer.LiveReloadScript = script
	}
}

// WithAssets serves files from fsys (rooted at subDir) under pattern,
// for example the bundle output under "/dist/".
// Directory listings are disabled. Bundle names are content hashed, so files
// are cached for a long time.
//
// Example:
//
//	trellis.WithAssets("/dist/", os.DirFS("."), "dist")
func WithAssets(pattern string, fsys fs.FS, subDir string) Option {
	return func(a *App) {
		subFS, err := fs.Sub(fsys, subDir)
		if err != nil {
			panic(err)
		}

		prefix := strings.TrimSuffix(pattern, "/")
		fileServer := http.StripPrefix(prefix, http.FileServerFS(subFS))

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}

			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			w.Header().Set("X-Content-Type-Options", "nosniff")

			fileServer.ServeHTTP(w, r)
		})

		a.mounts = append(a.mounts, mount{
			pattern: prefix + "/*",
			handler: handler,
			methods: []string{http.MethodGet, http.MethodHead},
		})
	}
}

// WithHTTPHandler attaches a plain http.Handler for the given methods, or
// for every method when none are given.
//
// Example:
//
//	trellis.WithHTTPHandler("/metrics", promhttp.Handler(), http.MethodGet)
func WithHTTPHandler(pattern string, h http.Handler, methods ...string) Option {
	return func(a *App) {
		a.mounts = append(a.mounts, mount{pattern: pattern, handler: h, methods: methods})
	}
}

// WithErrorHandler sets a custom error handler for handler errors.
// Returning a non-nil error falls back to DefaultErrorHandler.
//
// Example:
//
//	trellis.WithErrorHandler(func(c trellis.Context, err error) error {
//	    return c.JSON(http.StatusInternalServerError, map[string]string{
//	        "error": err.Error(),
//	    })
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithNotFoundHandler sets the handler for paths no route matches.
//
// Example:
//
//	trellis.WithNotFoundHandler(func(c trellis.Context) error {
//	    return c.String(http.StatusNotFound, "Page not found")
//	})
func WithNotFoundHandler(h HandlerFunc) Option {
	return func(a *App) {
		a.notFound = h
	}
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	trellis.WithHealthChecks(
//	    trellis.WithReadinessCheck("db", db.Healthcheck(pool)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
			checks:        make(health.Checks),
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}

// WithLogger creates a logger with a component name and optional extractors.
// Extractors pull values from context (e.g., request_id, user_id).
//
// Example:
//
//	trellis.WithLogger("web", middlewares.RequestIDExtractor())
func WithLogger(component string, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.logger = logger.New(extractors...).With("component", component)
	}
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCookieOptions configures the cookie manager used to sign sessions.
//
// Example:
//
//	trellis.WithCookieOptions(
//	    cookie.WithSecret(os.Getenv("SESSION_SECRET")),
//	    cookie.WithSecure(true),
//	)
func WithCookieOptions(opts ...cookie.Option) Option {
	return func(a *App) {
		a.cookieManager = cookie.New(opts...)
	}
}

// WithSession enables the signed cookie session. The session is parsed
// lazily and committed automatically before the response is written when
// it was modified.
func WithSession(opts ...session.StoreOption) Option {
	return func(a *App) {
		a.withSessions = true
		a.sessionOpts = append(a.sessionOpts, opts...)
	}
}

// WithJobs enables both job enqueueing and worker processing using River.
// Workers are started automatically when the app runs and stopped
// gracefully during shutdown.
//
// Example:
//
//	trellis.WithJobs(pool,
//	    job.WithTask[cms.RebuildPayload](cms.NewRebuildRoutesTask(site)),
//	    job.WithScheduledTask(cms.NewRebuildRoutesSchedule(site, "@every 10m")),
//	)
func WithJobs(pool *pgxpool.Pool, opts ...job.Option) Option {
	return func(a *App) {
		jw, err := NewJobWorker(pool, opts...)
		if err != nil {
			panic(fmt.Sprintf("job worker: %v", err))
		}
		a.jobEnqueuer = jw.Enqueuer()
		a.jobWorker = jw
	}
}

// WithJobEnqueuer enables job enqueueing without worker processing.
// Workers must be running elsewhere to process the enqueued jobs.
func WithJobEnqueuer(pool *pgxpool.Pool, opts ...job.EnqueuerOption) Option {
	return func(a *App) {
		je, err := NewJobEnqueuer(pool, opts...)
		if err != nil {
			panic(fmt.Sprintf("job enqueuer: %v", err))
		}
		a.jobEnqueuer = je
	}
}

// WithStorage configures file storage for the application.
// Enables c.Upload() and c.FileURL().
func WithStorage(s storage.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}

// WithStartupHook runs fn before the server starts accepting requests.
// A failing hook aborts the start.
func WithStartupHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.startupHooks = append(a.startupHooks, fn)
		}
	}
}

// WithShutdownHook runs fn after the server has drained.
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
}

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check.
//
// Example:
//
//	trellis.WithReadinessCheck("db", db.Healthcheck(pool))
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		c.checks[name] = fn
	}
}
