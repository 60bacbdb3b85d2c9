package cms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// Module IDs.
const (
	ModuleAdminLayout             = "cms/layout/admin"
	ModuleAuthLayout              = "cms/layout/auth"
	ModuleLogin                   = "cms/auth/login"
	ModuleLogout                  = "cms/auth/logout"
	ModuleDashboard               = "cms/admin/dashboard"
	ModuleInsufficientPermissions = "cms/admin/insufficient-permissions"
	ModuleUsers                   = "cms/admin/users"
	ModuleUserEdit                = "cms/admin/users/edit"
	ModulePosts                   = "cms/admin/posts"
	ModulePostEdit                = "cms/admin/posts/edit"
	ModuleFieldGroups             = "cms/admin/field-groups"
	ModuleFieldGroupEdit          = "cms/admin/field-groups/edit"
	ModuleFieldGroupDelete        = "cms/admin/field-groups/delete"
	ModuleRuntimeRoutes           = "cms/admin/settings/runtime-routes"
	ModulePage                    = "cms/templates/page"
)

// Session flash keys.
const (
	flashMessage = "message"
	flashError   = "error"
)

// DefaultPostType is listed when the postType query parameter is absent.
const DefaultPostType = "post"

// CMS bundles the admin modules, their routes and the runtime route source.
type CMS struct {
	store     Store
	table     *trellis.RuntimeTable
	logger    *slog.Logger
	templates map[string][]string
}

// Option configures a CMS.
type Option func(*CMS)

// WithLogger sets the logger used outside of requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *CMS) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTemplate sets the module chain rendering posts of a post type.
// Without it posts render with the page template alone.
func WithTemplate(postTypeSlug string, modules ...string) Option {
	return func(c *CMS) {
		c.templates[postTypeSlug] = modules
	}
}

// New creates a CMS over store. Rebuilds replace the routes of table.
func New(store Store, table *trellis.RuntimeTable, opts ...Option) *CMS {
	c := &CMS{
		store:     store,
		table:     table,
		logger:    slog.New(slog.DiscardHandler),
		templates: map[string][]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the content store.
func (c *CMS) Store() Store { return c.store }

// Table returns the runtime route table.
func (c *CMS) Table() *trellis.RuntimeTable { return c.table }

// Options returns the app options that mount the CMS: modules, routes, the
// JSON API, the runtime table and a startup hook building it.
func (c *CMS) Options() []trellis.Option {
	return []trellis.Option{
		trellis.WithModules(c.Modules()...),
		trellis.WithRoutes(c.Routes()...),
		trellis.WithHandlers(c.API()),
		trellis.WithRuntimeRoutes(c.table),
		trellis.WithStartupHook(c.Rebuild),
	}
}

// Modules returns every CMS module.
func (c *CMS) Modules() []trellis.Module {
	return []trellis.Module{
		c.adminLayout(),
		c.authLayout(),
		c.login(),
		c.logout(),
		c.dashboard(),
		c.insufficientPermissions(),
		c.users(),
		c.userEdit(),
		c.posts(),
		c.postEdit(),
		c.fieldGroups(),
		c.fieldGroupEdit(),
		c.fieldGroupDelete(),
		c.runtimeRoutes(),
		c.page(),
	}
}

// Routes returns the static admin and auth routes.
func (c *CMS) Routes() []trellis.Route {
	resolver := Resolver(c.store)
	gate := func(r role.Role) []trellis.Middleware {
		return []trellis.Middleware{middlewares.Authorize(r, resolver)}
	}
	admin := func(mods ...string) []string {
		return append([]string{ModuleAdminLayout}, mods...)
	}

	return []trellis.Route{
		{Pattern: "/admin", Middleware: gate(role.Subscriber), Modules: admin(ModuleDashboard)},
		{Pattern: "/admin/insufficient-permissions", Middleware: gate(role.Subscriber), Modules: admin(ModuleInsufficientPermissions)},
		{Pattern: "/admin/posts", Middleware: gate(role.Editor), Modules: admin(ModulePosts)},
		{Pattern: "/admin/posts/edit", Middleware: gate(role.Editor), Modules: admin(ModulePostEdit)},
		{Pattern: "/admin/field-groups", Middleware: gate(role.Editor), Modules: admin(ModuleFieldGroups)},
		{Pattern: "/admin/field-groups/edit", Middleware: gate(role.Editor), Modules: admin(ModuleFieldGroupEdit)},
		{Pattern: "/admin/field-groups/delete", Middleware: gate(role.Editor), Modules: []string{ModuleFieldGroupDelete}},
		{Pattern: "/admin/users", Middleware: gate(role.Admin), Modules: admin(ModuleUsers)},
		{Pattern: "/admin/users/edit", Middleware: gate(role.Admin), Modules: admin(ModuleUserEdit)},
		{Pattern: "/admin/settings/runtime-routes", Middleware: gate(role.Admin), Modules: []string{ModuleRuntimeRoutes}},
		{Pattern: "/auth/login", Modules: []string{ModuleAuthLayout, ModuleLogin}},
		{Pattern: "/auth/logout", Modules: []string{ModuleLogout}},
	}
}

// Rebuild reloads the runtime routes from the store.
func (c *CMS) Rebuild(ctx context.Context) error {
	if err := c.table.Rebuild(ctx, c.Source()); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "runtime routes rebuilt", "routes", c.table.Len())
	return nil
}

// scheduleRebuild enqueues a rebuild when a job queue is configured and
// rebuilds in place otherwise.
func (c *CMS) scheduleRebuild(ctx trellis.Context) error {
	err := ctx.Enqueue(RebuildRoutesTaskName, RebuildPayload{Reason: "content changed"})
	if errors.Is(err, job.ErrNotConfigured) {
		return c.Rebuild(ctx.Context())
	}
	return err
}

// flashes reads and consumes the message and error flashes.
func flashes(c trellis.Context) (message, errMsg string) {
	sess := c.Session()
	if v, ok := sess.Get(flashMessage); ok {
		message, _ = v.(string)
	}
	if v, ok := sess.Get(flashError); ok {
		errMsg, _ = v.(string)
	}
	return message, errMsg
}
