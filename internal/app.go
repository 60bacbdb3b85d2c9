package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/trellis/pkg/bundle"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/health"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/session"
	"github.com/dmitrymomot/trellis/pkg/storage"
)

// Default server timeouts.
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// App orchestrates the application lifecycle: routing, the module
// dispatcher, background jobs and graceful shutdown.
// App is immutable after creation - all configuration is done via New().
type App struct {
	router        chi.Router
	errorHandler  ErrorHandler
	notFound      HandlerFunc
	healthConfig  *healthConfig
	logger        *slog.Logger
	cookieManager *cookie.Manager
	sessions      *session.Store
	sessionOpts   []session.StoreOption
	jobEnqueuer   *JobEnqueuer
	jobWorker     *JobWorker
	storage       storage.Storage
	registry      *Registry
	runtime       *RuntimeTable
	renderer      *Renderer
	dispatcher    *Dispatcher
	bundler       bundle.Bundler
	vars          Variables
	entry         string
	middlewares   []Middleware
	handlers      []Handler
	routes        []Route
	mounts        []mount
	startupHooks  []func(context.Context) error
	shutdownHooks []func(context.Context) error
	withSessions  bool
}

// mount is a plain http.Handler attached to a path pattern.
type mount struct {
	handler http.Handler
	pattern string
	methods []string
}

// New creates a new application with the given options.
// It panics when the route table references unknown modules.
//
// Example:
//
//	app := trellis.New(
//	    trellis.WithSession(),
//	    trellis.WithModules(cms.Modules(store)...),
//	    trellis.WithRoutes(cms.Routes()...),
//	    trellis.WithRuntimeRoutes(table),
//	)
func New(opts ...Option) *App {
	a := &App{
		router:        chi.NewRouter(),
		logger:        logger.NewNope(),
		cookieManager: cookie.New(),
		registry:      NewRegistry(),
		renderer:      &Renderer{Title: "trellis"},
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.withSessions {
		a.sessions = session.NewStore(a.cookieManager, a.sessionOpts...)
	}

	table, err := newRouteTable(a.routes, a.registry)
	if err != nil {
		panic(fmt.Sprintf("trellis: %v", err))
	}
	a.dispatcher = newDispatcher(a.registry, table, a.runtime, a.renderer)
	a.dispatcher.bundler = a.bundler
	a.dispatcher.entry = a.entry
	a.dispatcher.notFound = a.notFound

	a.setupRoutes()
	return a
}

// Router returns the root http.Handler of the App.
func (a *App) Router() chi.Router {
	return a.router
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Registry returns the module registry.
func (a *App) Registry() *Registry {
	return a.registry
}

// RuntimeRoutes returns the runtime route table, or nil when not configured.
func (a *App) RuntimeRoutes() *RuntimeTable {
	return a.runtime
}

// Sessions returns the session store, or nil when sessions are disabled.
func (a *App) Sessions() *session.Store {
	return a.sessions
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// JobWorker returns the job worker if configured, nil otherwise.
func (a *App) JobWorker() *JobWorker {
	return a.jobWorker
}

// Run starts the HTTP server and blocks until shutdown.
// Job workers start before the server accepts requests and stop after it
// has drained.
//
// Example:
//
//	err := app.Run(":8080", trellis.Logger(log))
func (a *App) Run(addr string, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)
	if cfg.logger == nil {
		cfg.logger = a.logger
	}

	startupHooks := append([]func(context.Context) error{}, a.startupHooks...)
	startupHooks = append(startupHooks, cfg.startupHooks...)
	shutdownHooks := append([]func(context.Context) error{}, cfg.shutdownHooks...)
	shutdownHooks = append(shutdownHooks, a.shutdownHooks...)

	if a.jobWorker != nil {
		startupHooks = append([]func(context.Context) error{a.jobWorker.Manager().Start}, startupHooks...)
		shutdownHooks = append(shutdownHooks, a.jobWorker.Manager().Stop)
	}

	if cfg.address != "" {
		addr = cfg.address
	}

	return runServer(runtimeConfig{
		handler:         a.router,
		address:         addr,
		logger:          cfg.logger,
		shutdownTimeout: cfg.shutdownTimeout,
		startupHooks:    startupHooks,
		shutdownHooks:   shutdownHooks,
		baseCtx:         cfg.baseCtx,
	})
}

// setupRoutes configures the router: global middleware, mounts, health
// endpoints, handlers, and the dispatcher as the catch-all.
func (a *App) setupRoutes() {
	for _, mw := range a.middlewares {
		a.router.Use(a.adaptMiddleware(mw))
	}

	for _, m := range a.mounts {
		if len(m.methods) == 0 {
			a.router.Handle(m.pattern, m.handler)
			continue
		}
		for _, method := range m.methods {
			a.router.Method(method, m.pattern, m.handler)
		}
	}

	if a.healthConfig != nil {
		a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
		a.router.Get(a.healthConfig.readinessPath, health.ReadinessHandler(
			a.healthConfig.checks,
			health.WithLogger(a.logger),
		))
	}

	r := &routerAdapter{router: a.router, app: a}
	for _, h := range a.handlers {
		h.Routes(r)
	}

	dispatch := a.wrapHandler(a.dispatcher.Handle)
	a.router.NotFound(dispatch)
	a.router.MethodNotAllowed(a.wrapHandler(func(Context) error {
		return ErrMethodNotAllowed("method not allowed")
	}))
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost} {
		a.router.Method(method, "/*", dispatch)
	}
}

func (a *App) contextConfig() *contextConfig {
	return &contextConfig{
		logger:   a.logger,
		sessions: a.sessions,
		storage:  a.storage,
		enqueuer: a.jobEnqueuer,
		vars:     a.vars,
	}
}

// wrapHandler converts a HandlerFunc to http.HandlerFunc using the app's error handler.
func (a *App) wrapHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquireContext(w, r, a.contextConfig())
		if err := h(c); err != nil {
			a.handleError(c, err)
		}
	}
}

// handleError answers a failed request unless a response was already sent.
func (a *App) handleError(c Context, err error) {
	if c.Written() {
		return
	}
	if a.errorHandler != nil {
		if herr := a.errorHandler(c, err); herr == nil {
			return
		}
	}
	_ = DefaultErrorHandler(c, err)
}

// DefaultErrorHandler maps errors to plain-text responses: an HTTPError keeps
// its status, an expired deadline becomes 503 and anything else is logged
// and answered with 500.
func DefaultErrorHandler(c Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case IsHTTPError(err):
		status = AsHTTPError(err).StatusCode()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		c.LogError("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}

	message := http.StatusText(status)
	if he := AsHTTPError(err); he != nil && status < http.StatusInternalServerError && he.Message != "" {
		message = he.Message
	}
	return c.String(status, message)
}
