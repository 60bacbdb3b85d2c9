package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/trellis/pkg/cookie"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/session"
	"github.com/dmitrymomot/trellis/pkg/storage"
)

// SessionUserKey is the session key holding the signed-in user ID.
const SessionUserKey = "user_id"

// VarBodyClasses is the variable holding CSS classes for the <body> element.
const VarBodyClasses = "bodyClasses"

// VarTitle is the variable holding the document title.
const VarTitle = "title"

const defaultMaxMemory = 32 << 20 // 32MB

// ErrNoSessionStore is returned when a session is committed without a store.
var ErrNoSessionStore = errors.New("trellis: session store not configured")

// Component is the interface for renderable templates.
// This is compatible with templ.Component.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

// Variables is the per-request bag shared by the middleware, every module of
// the chain and the renderer. Values must be JSON serializable because they
// are embedded in the hydration snapshot.
type Variables map[string]any

// Context provides request/response access and the per-request state of the
// module pipeline. It implements context.Context by delegating to the
// underlying request context.
type Context interface {
	context.Context

	// Request returns the underlying *http.Request.
	Request() *http.Request

	// SetRequest replaces the request, e.g. to attach a derived context.
	SetRequest(r *http.Request)

	// Response returns the response writer.
	Response() http.ResponseWriter

	// ResponseWriter returns the wrapped response writer.
	ResponseWriter() *ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// Param returns the URL parameter value by name.
	Param(name string) string

	// Query returns the query parameter value by name.
	Query(name string) string

	// QueryDefault returns the query parameter value or a default.
	QueryDefault(name, defaultValue string) string

	// Form returns the form value by name.
	Form(name string) string

	// PostForm returns the parsed body form values.
	PostForm() url.Values

	// FormFile returns the first file for the given form key.
	FormFile(name string) (multipart.File, *multipart.FileHeader, error)

	// Header returns the request header value by name.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// JSON writes a JSON response with the given status code.
	JSON(code int, v any) error

	// String writes a plain text response with the given status code.
	String(code int, s string) error

	// NoContent writes a response with no body.
	NoContent(code int) error

	// Redirect redirects to the given URL with the given status code.
	Redirect(code int, url string) error

	// Render renders a component with the given status code.
	// The component is rendered into a buffer first; on error nothing is sent.
	Render(code int, component Component) error

	// Error creates an HTTPError.
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError

	// Written reports whether the response has been started.
	Written() bool

	// Logger returns the request logger.
	Logger() *slog.Logger

	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a value in the request context.
	Set(key, value any)

	// Get returns a value from the request context.
	Get(key any) any

	// Var returns a variable.
	Var(key string) any

	// SetVar sets a variable visible to later modules and the renderer.
	SetVar(key string, value any)

	// DeleteVar removes a variable.
	DeleteVar(key string)

	// Vars returns the variables bag of the request.
	Vars() Variables

	// Headers returns the outgoing headers merged into the final response.
	Headers() http.Header

	// AddCookie queues a Set-Cookie value on the outgoing headers.
	// A later cookie with the same name replaces an earlier one.
	AddCookie(setCookie string)

	// MergeCookie applies a Set-Cookie value to the inbound request so that
	// later reads in the same request observe it.
	MergeCookie(setCookie string) error

	// Session returns the session parsed from the request cookie.
	// It is parsed lazily and cached for the request.
	Session() *session.Session

	// CommitSession serializes the session, queues the cookie on the
	// outgoing headers and returns the Set-Cookie value.
	CommitSession() (string, error)

	// DestroySession drops the session and queues an expired cookie.
	DestroySession()

	// UserID returns the signed-in user ID from the session.
	UserID() string

	// Storage returns the configured file storage.
	Storage() (storage.Storage, error)

	// Upload stores a file in the configured storage.
	Upload(r io.Reader, size int64, opts ...storage.Option) (*storage.FileInfo, error)

	// FileURL returns a URL for a stored file.
	FileURL(key string, opts ...storage.URLOption) (string, error)

	// Enqueue adds a background job. Returns job.ErrNotConfigured when the
	// application has no job queue.
	Enqueue(name string, payload any, opts ...job.EnqueueOption) error
}

// contextConfig carries the app-level collaborators of a request context.
type contextConfig struct {
	logger   *slog.Logger
	sessions *session.Store
	storage  storage.Storage
	enqueuer *JobEnqueuer
	vars     Variables
}

// ContextOption configures a standalone context created with NewContext.
type ContextOption func(*contextConfig)

// WithContextLogger sets the context logger.
func WithContextLogger(l *slog.Logger) ContextOption {
	return func(c *contextConfig) {
		c.logger = l
	}
}

// WithContextSessions sets the session store.
func WithContextSessions(s *session.Store) ContextOption {
	return func(c *contextConfig) {
		c.sessions = s
	}
}

// WithContextVars sets default variables.
func WithContextVars(v Variables) ContextOption {
	return func(c *contextConfig) {
		c.vars = v
	}
}

// requestContextKey stores the request context in the request's context.Context
// so adapted middleware and the dispatcher share one state per request.
type requestContextKey struct{}

// requestContext implements the Context interface.
type requestContext struct {
	// mu guards request: a handler detached by the timeout middleware may
	// still replace it while the outer chain logs the request.
	mu       sync.RWMutex
	request  *http.Request
	response *ResponseWriter
	logger   *slog.Logger
	sessions *session.Store
	session  *session.Session
	storage  storage.Storage
	enqueuer *JobEnqueuer
	vars     Variables
	outgoing http.Header
}

// NewContext creates a request context outside an App, mostly for tests and
// for mounting modules into foreign routers.
func NewContext(w http.ResponseWriter, r *http.Request, opts ...ContextOption) Context {
	cfg := &contextConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return acquireContext(w, r, cfg)
}

// acquireContext returns the context already attached to r or creates one.
func acquireContext(w http.ResponseWriter, r *http.Request, cfg *contextConfig) *requestContext {
	if c, ok := r.Context().Value(requestContextKey{}).(*requestContext); ok {
		c.setRequest(r)
		return c
	}

	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}

	l := cfg.logger
	if l == nil {
		l = logger.NewNope()
	}

	c := &requestContext{
		response: rw,
		logger:   l,
		sessions: cfg.sessions,
		storage:  cfg.storage,
		enqueuer: cfg.enqueuer,
		vars:     seedVars(cfg.vars),
		outgoing: make(http.Header),
	}
	c.request = r.WithContext(context.WithValue(r.Context(), requestContextKey{}, c))
	rw.OnBeforeWrite(c.flush)
	return c
}

// seedVars clones the defaults and makes sure bodyClasses starts empty.
func seedVars(defaults Variables) Variables {
	vars := make(Variables, len(defaults)+1)
	maps.Copy(vars, defaults)
	if classes, ok := defaults[VarBodyClasses].([]string); ok {
		vars[VarBodyClasses] = slices.Clone(classes)
	} else {
		vars[VarBodyClasses] = []string{}
	}
	return vars
}

// flush runs right before the response is written: a dirty session is
// committed and the outgoing headers are copied to the response.
func (c *requestContext) flush() {
	if c.session != nil && c.session.IsDirty() && c.sessions != nil {
		header, err := c.sessions.Commit(c.session)
		if err != nil {
			c.logger.ErrorContext(c.Request().Context(), "failed to commit session", slog.Any("error", err))
		} else {
			c.AddCookie(header)
		}
	}

	h := c.response.Header()
	for key, values := range c.outgoing {
		if key == "Set-Cookie" {
			for _, v := range values {
				h.Add(key, v)
			}
			continue
		}
		h[key] = slices.Clone(values)
	}
}

func (c *requestContext) Request() *http.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.request
}

func (c *requestContext) SetRequest(r *http.Request) {
	if r != nil {
		c.setRequest(r)
	}
}

func (c *requestContext) setRequest(r *http.Request) {
	c.mu.Lock()
	c.request = r
	c.mu.Unlock()
}

func (c *requestContext) Response() http.ResponseWriter {
	return c.response
}

func (c *requestContext) ResponseWriter() *ResponseWriter {
	return c.response
}

func (c *requestContext) Context() context.Context {
	return c.Request().Context()
}

func (c *requestContext) Deadline() (time.Time, bool) {
	return c.Request().Context().Deadline()
}

func (c *requestContext) Done() <-chan struct{} {
	return c.Request().Context().Done()
}

func (c *requestContext) Err() error {
	return c.Request().Context().Err()
}

func (c *requestContext) Value(key any) any {
	return c.Request().Context().Value(key)
}

func (c *requestContext) Param(name string) string {
	return chi.URLParam(c.Request(), name)
}

func (c *requestContext) Query(name string) string {
	return c.Request().URL.Query().Get(name)
}

func (c *requestContext) QueryDefault(name, defaultValue string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return defaultValue
}

func (c *requestContext) Form(name string) string {
	c.parseForm()
	return c.Request().PostFormValue(name)
}

func (c *requestContext) PostForm() url.Values {
	c.parseForm()
	return c.Request().PostForm
}

func (c *requestContext) parseForm() {
	r := c.Request()
	if r.PostForm != nil {
		return
	}
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		c.logger.DebugContext(r.Context(), "form parse failed", slog.Any("error", err))
	}
	if r.PostForm == nil {
		r.PostForm = make(url.Values)
	}
}

func (c *requestContext) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	c.parseForm()
	return c.Request().FormFile(name)
}

func (c *requestContext) Header(name string) string {
	return c.Request().Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) JSON(code int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	_, err = c.response.Write(append(body, '\n'))
	return err
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.response.WriteHeader(code)
	return nil
}

func (c *requestContext) Redirect(code int, url string) error {
	http.Redirect(c.response, c.Request(), url, code)
	return nil
}

func (c *requestContext) Render(code int, component Component) error {
	var buf bytes.Buffer
	if err := component.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	c.response.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := buf.WriteTo(c.response)
	return err
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(code, message, opts...)
}

func (c *requestContext) Written() bool {
	return c.response.Written()
}

func (c *requestContext) Logger() *slog.Logger {
	return c.logger
}

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.logger.DebugContext(c.Request().Context(), msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.logger.InfoContext(c.Request().Context(), msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.logger.WarnContext(c.Request().Context(), msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.logger.ErrorContext(c.Request().Context(), msg, attrs...)
}

func (c *requestContext) Set(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.request = c.request.WithContext(context.WithValue(c.request.Context(), key, value))
}

func (c *requestContext) Get(key any) any {
	return c.Request().Context().Value(key)
}

func (c *requestContext) Var(key string) any {
	return c.vars[key]
}

func (c *requestContext) SetVar(key string, value any) {
	c.vars[key] = value
}

func (c *requestContext) DeleteVar(key string) {
	delete(c.vars, key)
}

func (c *requestContext) Vars() Variables {
	return c.vars
}

func (c *requestContext) Headers() http.Header {
	return c.outgoing
}

func (c *requestContext) AddCookie(setCookie string) {
	name, err := cookie.Name(setCookie)
	if err != nil {
		c.outgoing.Add("Set-Cookie", setCookie)
		return
	}

	kept := make([]string, 0, len(c.outgoing["Set-Cookie"])+1)
	for _, v := range c.outgoing["Set-Cookie"] {
		if n, err := cookie.Name(v); err == nil && n == name {
			continue
		}
		kept = append(kept, v)
	}
	c.outgoing["Set-Cookie"] = append(kept, setCookie)
}

func (c *requestContext) MergeCookie(setCookie string) error {
	if err := cookie.Merge(c.Request(), setCookie); err != nil {
		return err
	}
	if c.sessions != nil {
		if name, _ := cookie.Name(setCookie); name == c.sessions.Name() {
			c.session = nil
		}
	}
	return nil
}

func (c *requestContext) Session() *session.Session {
	if c.session == nil {
		if c.sessions != nil {
			c.session = c.sessions.Parse(c.Request())
		} else {
			c.session = session.New(nil)
		}
	}
	return c.session
}

func (c *requestContext) CommitSession() (string, error) {
	if c.sessions == nil {
		return "", ErrNoSessionStore
	}
	header, err := c.sessions.Commit(c.Session())
	if err != nil {
		return "", err
	}
	c.AddCookie(header)
	return header, nil
}

func (c *requestContext) DestroySession() {
	c.session = session.New(nil)
	if c.sessions != nil {
		c.AddCookie(c.sessions.Destroy())
	}
}

func (c *requestContext) UserID() string {
	return session.ValueOr(c.Session(), SessionUserKey, "")
}

func (c *requestContext) Storage() (storage.Storage, error) {
	if c.storage == nil {
		return nil, storage.ErrNotConfigured
	}
	return c.storage, nil
}

func (c *requestContext) Upload(r io.Reader, size int64, opts ...storage.Option) (*storage.FileInfo, error) {
	if c.storage == nil {
		return nil, storage.ErrNotConfigured
	}
	return c.storage.Put(c.Context(), r, size, opts...)
}

func (c *requestContext) FileURL(key string, opts ...storage.URLOption) (string, error) {
	if c.storage == nil {
		return "", storage.ErrNotConfigured
	}
	return c.storage.URL(c.Context(), key, opts...)
}

func (c *requestContext) Enqueue(name string, payload any, opts ...job.EnqueueOption) error {
	if c.enqueuer == nil {
		return job.ErrNotConfigured
	}
	return c.enqueuer.Enqueue(c.Context(), name, payload, opts...)
}

// BodyClasses returns the bodyClasses variable as strings. It accepts the
// []string seeded per request and the []any produced by JSON decoding.
func BodyClasses(vars Variables) []string {
	switch v := vars[VarBodyClasses].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AddBodyClass appends classes to the bodyClasses variable.
func AddBodyClass(c Context, classes ...string) {
	current := BodyClasses(c.Vars())
	next := make([]string, 0, len(current)+len(classes))
	next = append(next, current...)
	for _, class := range classes {
		if !slices.Contains(next, class) {
			next = append(next, class)
		}
	}
	c.SetVar(VarBodyClasses, next)
}
