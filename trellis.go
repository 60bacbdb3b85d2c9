package trellis

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/bundle"
	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/health"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/session"
	"github.com/dmitrymomot/trellis/pkg/storage"
)

// Type aliases - public API
type (
	// App orchestrates the application lifecycle.
	// It owns the router, the module registry and both route tables.
	App = internal.App

	// Router is the interface handlers use to declare routes.
	Router = internal.Router

	// Context provides request/response access and helper methods.
	Context = internal.Context

	// Handler declares routes on a router.
	Handler = internal.Handler

	// HandlerFunc is the signature for route handlers.
	HandlerFunc = internal.HandlerFunc

	// Middleware wraps a HandlerFunc to add cross-cutting concerns.
	Middleware = internal.Middleware

	// ErrorHandler handles errors returned from handlers.
	ErrorHandler = internal.ErrorHandler

	// Option configures the application.
	Option = internal.Option

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// Component is the interface for renderable templates.
	Component = internal.Component

	// Variables is the per-request key/value bag shared by middleware,
	// hooks and components.
	Variables = internal.Variables

	// Module is a layout or a leaf of a route chain.
	Module = internal.Module

	// Props is what a module component receives.
	Props = internal.Props

	// Registry holds the modules known to the app.
	Registry = internal.Registry

	// Route binds a static pattern to a module chain.
	Route = internal.Route

	// RuntimeRoute binds a content URL to a record and a template chain.
	RuntimeRoute = internal.RuntimeRoute

	// RuntimeTable is the atomically swapped set of runtime routes.
	RuntimeTable = internal.RuntimeTable

	// RuntimeSource produces runtime routes from stored content.
	RuntimeSource = internal.RuntimeSource

	// RuntimeSourceFunc adapts a function to RuntimeSource.
	RuntimeSourceFunc = internal.RuntimeSourceFunc

	// Hook is a loader or an action.
	Hook = internal.Hook

	// Result is the outcome of a hook.
	Result = internal.Result

	// ResultKind tags a Result.
	ResultKind = internal.ResultKind

	// FormErrors is the payload of an Invalid result.
	FormErrors = internal.FormErrors

	// Tree is the resolved module chain with hook data.
	Tree = internal.Tree

	// Node is one module of a Tree.
	Node = internal.Node

	// Snapshot is the hydration payload embedded into documents.
	Snapshot = internal.Snapshot

	// Renderer writes documents for module trees.
	Renderer = internal.Renderer

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// CookieOption configures the cookie manager.
	CookieOption = cookie.Option

	// SessionOption configures the session store.
	SessionOption = session.StoreOption

	// Session is the signed cookie session of a request.
	Session = session.Session

	// ResponseWriter wraps http.ResponseWriter with before-write hooks.
	ResponseWriter = internal.ResponseWriter

	// JobOption configures the job manager.
	JobOption = job.Option

	// Extractor pulls a string value from the request using ordered sources.
	Extractor = internal.Extractor

	// ExtractorSource is a single source for extracting a value.
	ExtractorSource = internal.ExtractorSource

	// HTTPError is an error that carries an HTTP status code.
	HTTPError = internal.HTTPError

	// HTTPErrorOption configures an HTTPError.
	HTTPErrorOption = internal.HTTPErrorOption
)

// Result kinds.
const (
	KindOk       = internal.KindOk
	KindRedirect = internal.KindRedirect
	KindInvalid  = internal.KindInvalid
)

// Well-known variables and session keys.
const (
	VarTitle       = internal.VarTitle
	VarBodyClasses = internal.VarBodyClasses
	SessionUserKey = internal.SessionUserKey
)

// Errors for checking return values.
var (
	ErrUnknownModule  = internal.ErrUnknownModule
	ErrNoSessionStore = internal.ErrNoSessionStore
)

// Constructors

// New creates a new application with the given options.
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// NewRegistry creates a registry holding mods.
func NewRegistry(mods ...Module) *Registry {
	return internal.NewRegistry(mods...)
}

// NewRuntimeTable creates an empty runtime route table.
func NewRuntimeTable() *RuntimeTable {
	return internal.NewRuntimeTable()
}

// NewContext creates a Context for w and r outside of the app, mostly for
// tests of middleware and hooks.
func NewContext(w http.ResponseWriter, r *http.Request, opts ...internal.ContextOption) Context {
	return internal.NewContext(w, r, opts...)
}

// WithContextSessions gives a standalone Context a session store.
func WithContextSessions(s *session.Store) internal.ContextOption {
	return internal.WithContextSessions(s)
}

// WithContextVars seeds the variables of a standalone Context.
func WithContextVars(v Variables) internal.ContextOption {
	return internal.WithContextVars(v)
}

// Results

// Ok returns a result carrying data.
func Ok(data any) Result {
	return internal.Ok(data)
}

// Redirect returns a terminal redirect result.
func Redirect(url string) Result {
	return internal.Redirect(url)
}

// Invalid returns a validation failure with the submitted values.
func Invalid(fields, values map[string]string) Result {
	return internal.Invalid(fields, values)
}

// Hydrate rebuilds a render tree from a snapshot.
func Hydrate(registry *Registry, s Snapshot) (*Tree, error) {
	return internal.Hydrate(registry, s)
}

// ParseSnapshot decodes a hydration payload.
func ParseSnapshot(data []byte) (Snapshot, error) {
	return internal.ParseSnapshot(data)
}

// LoaderData returns the loader data of p as T.
func LoaderData[T any](p Props) T {
	return internal.LoaderData[T](p)
}

// ActionData returns the action data of p as T.
func ActionData[T any](p Props) T {
	return internal.ActionData[T](p)
}

// As converts a loader or action payload to T.
func As[T any](v any) (T, error) {
	return internal.As[T](v)
}

// MatchedRuntimeRoute returns the runtime route that matched the request.
func MatchedRuntimeRoute(c Context) (RuntimeRoute, bool) {
	return internal.MatchedRuntimeRoute(c)
}

// AddBodyClass appends classes to the document body.
func AddBodyClass(c Context, classes ...string) {
	internal.AddBodyClass(c, classes...)
}

// BodyClasses returns the body classes stored in vars.
func BodyClasses(vars Variables) []string {
	return internal.BodyClasses(vars)
}

// App options

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithHandlers registers handlers that declare routes.
func WithHandlers(h ...Handler) Option {
	return internal.WithHandlers(h...)
}

// WithModules registers modules in the app registry.
func WithModules(mods ...Module) Option {
	return internal.WithModules(mods...)
}

// WithRoutes appends static routes. The first matching route wins.
func WithRoutes(routes ...Route) Option {
	return internal.WithRoutes(routes...)
}

// WithRuntimeRoutes sets the runtime route table consulted after static routes.
func WithRuntimeRoutes(t *RuntimeTable) Option {
	return internal.WithRuntimeRoutes(t)
}

// WithVars sets the variables every request starts with.
func WithVars(vars Variables) Option {
	return internal.WithVars(vars)
}

// WithTitle sets the default document title.
func WithTitle(title string) Option {
	return internal.WithTitle(title)
}

// WithBundler enables client bundles built from entry.
func WithBundler(b bundle.Bundler, entry string) Option {
	return internal.WithBundler(b, entry)
}

// WithStylesheet links a stylesheet from every document.
func WithStylesheet(href string) Option {
	return internal.WithStylesheet(href)
}

// WithLiveReload appends script to every document body.
func WithLiveReload(script string) Option {
	return internal.WithLiveReload(script)
}

// WithAssets serves files of fsys under pattern.
func WithAssets(pattern string, fsys fs.FS, subDir string) Option {
	return internal.WithAssets(pattern, fsys, subDir)
}

// WithHTTPHandler mounts a plain http.Handler at pattern.
func WithHTTPHandler(pattern string, h http.Handler, methods ...string) Option {
	return internal.WithHTTPHandler(pattern, h, methods...)
}

// WithErrorHandler sets a custom error handler for handler errors.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithNotFoundHandler sets the handler for paths no route matches.
func WithNotFoundHandler(h HandlerFunc) Option {
	return internal.WithNotFoundHandler(h)
}

// WithLogger creates a logger with optional context extractors.
func WithLogger(component string, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, extractors...)
}

// WithCustomLogger sets a fully configured logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithCookieOptions configures the cookie manager.
func WithCookieOptions(opts ...CookieOption) Option {
	return internal.WithCookieOptions(opts...)
}

// WithSession enables the signed cookie session.
func WithSession(opts ...SessionOption) Option {
	return internal.WithSession(opts...)
}

// WithJobs enables job enqueueing and processing using River.
func WithJobs(pool *pgxpool.Pool, opts ...JobOption) Option {
	return internal.WithJobs(pool, opts...)
}

// WithJobEnqueuer enables job enqueueing without worker processing.
func WithJobEnqueuer(pool *pgxpool.Pool, opts ...job.EnqueuerOption) Option {
	return internal.WithJobEnqueuer(pool, opts...)
}

// WithStorage enables file uploads through Context.Upload.
func WithStorage(s storage.Storage) Option {
	return internal.WithStorage(s)
}

// WithStartupHook runs fn before the server starts listening.
func WithStartupHook(fn func(context.Context) error) Option {
	return internal.WithStartupHook(fn)
}

// WithShutdownHook runs fn during graceful shutdown.
func WithShutdownHook(fn func(context.Context) error) Option {
	return internal.WithShutdownHook(fn)
}

// Cookie options

// WithCookieSecret sets the HMAC secret. Must be at least 32 bytes.
func WithCookieSecret(secret string) CookieOption {
	return cookie.WithSecret(secret)
}

// WithCookieSecure sets the Secure flag.
func WithCookieSecure(secure bool) CookieOption {
	return cookie.WithSecure(secure)
}

// Health check options

// WithHealthChecks configures health check endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithLivenessPath sets the liveness endpoint path. Default: "/health/live".
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets the readiness endpoint path. Default: "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named check to the readiness endpoint.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Run options

// Address sets the server listen address.
func Address(addr string) RunOption {
	return internal.Address(addr)
}

// Logger sets the logger for server lifecycle events.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout sets the maximum time to wait for graceful shutdown.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook runs fn before the listener opens.
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook runs fn during graceful shutdown.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithContext sets a custom base context for signal handling.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// Context helpers

// ContextValue retrieves a typed value stored with Context.Set.
func ContextValue[T any](c Context, key any) T {
	return internal.ContextValue[T](c, key)
}

// Var returns the request variable key as T.
func Var[T any](c Context, key string) T {
	return internal.Var[T](c, key)
}

// Param returns a URL parameter converted to T.
func Param[T internal.Scalar](c Context, name string) T {
	return internal.Param[T](c, name)
}

// Query returns a query parameter converted to T.
func Query[T internal.Scalar](c Context, name string) T {
	return internal.Query[T](c, name)
}

// QueryDefault returns a query parameter converted to T or defaultValue.
func QueryDefault[T internal.Scalar](c Context, name string, defaultValue T) T {
	return internal.QueryDefault[T](c, name, defaultValue)
}

// FormValue returns a form value converted to T.
func FormValue[T internal.Scalar](c Context, name string) T {
	return internal.FormValue[T](c, name)
}

// Extractors

// NewExtractor creates an Extractor that tries sources in order.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return internal.NewExtractor(sources...)
}

// FromHeader extracts a value from a request header.
func FromHeader(name string) ExtractorSource { return internal.FromHeader(name) }

// FromQuery extracts a value from a query parameter.
func FromQuery(name string) ExtractorSource { return internal.FromQuery(name) }

// FromCookie extracts a value from a plain request cookie.
func FromCookie(name string) ExtractorSource { return internal.FromCookie(name) }

// FromParam extracts a value from a URL parameter.
func FromParam(name string) ExtractorSource { return internal.FromParam(name) }

// FromForm extracts a value from a form field.
func FromForm(name string) ExtractorSource { return internal.FromForm(name) }

// FromSession extracts a value from the session.
func FromSession(key string) ExtractorSource { return internal.FromSession(key) }

// FromVar extracts a value from the request variables.
func FromVar(key string) ExtractorSource { return internal.FromVar(key) }

// Errors

// NewHTTPError creates an HTTPError with the given status and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}

// ErrBadRequest returns a 400 error.
func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrBadRequest(message, opts...)
}

// ErrUnauthorized returns a 401 error.
func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrUnauthorized(message, opts...)
}

// ErrForbidden returns a 403 error.
func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrForbidden(message, opts...)
}

// ErrNotFound returns a 404 error.
func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrNotFound(message, opts...)
}

// ErrInternal returns a 500 error.
func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrInternal(message, opts...)
}

// ErrServiceUnavailable returns a 503 error.
func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrServiceUnavailable(message, opts...)
}

// AsHTTPError returns err as *HTTPError, or nil.
func AsHTTPError(err error) *HTTPError {
	return internal.AsHTTPError(err)
}

// DefaultErrorHandler is the error handler used when none is configured.
func DefaultErrorHandler(c Context, err error) error {
	return internal.DefaultErrorHandler(c, err)
}

// WithErrorTitle sets the error title.
func WithErrorTitle(title string) HTTPErrorOption {
	return internal.WithErrorTitle(title)
}

// WithDetail sets the error detail.
func WithDetail(detail string) HTTPErrorOption {
	return internal.WithDetail(detail)
}
