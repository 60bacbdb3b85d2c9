package cms

import (
	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// TypeCount is the number of posts of a post type.
type TypeCount struct {
	Type  PostType `json:"type"`
	Count int      `json:"count"`
}

// DashboardData is the loader data of the dashboard.
type DashboardData struct {
	Message       string      `json:"message,omitempty"`
	Error         string      `json:"error,omitempty"`
	Types         []TypeCount `json:"types"`
	RuntimeRoutes int         `json:"runtime_routes"`
	CanRebuild    bool        `json:"can_rebuild"`
}

func (c *CMS) dashboard() trellis.Module {
	return trellis.Module{
		ID: ModuleDashboard,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			types, err := c.store.PostTypes(ctx.Context())
			if err != nil {
				return trellis.Result{}, err
			}
			data := DashboardData{
				Types:         make([]TypeCount, 0, len(types)),
				RuntimeRoutes: c.table.Len(),
				CanRebuild:    middlewares.CurrentRole(ctx).Satisfies(role.Admin),
			}
			for _, t := range types {
				posts, err := c.store.Posts(ctx.Context(), t.ID)
				if err != nil {
					return trellis.Result{}, err
				}
				data.Types = append(data.Types, TypeCount{Type: t, Count: len(posts)})
			}
			data.Message, data.Error = flashes(ctx)
			return trellis.Ok(data), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[DashboardData](p)
			return view(func(m *markup) {
				m.alert("success", data.Message)
				m.alert("error", data.Error)
				m.raw(`<h1 class="text-xl font-bold mb-4">Dashboard</h1><ul class="mb-4">`)
				for _, t := range data.Types {
					m.rawf(`<li><a href="/admin/posts?postType=%s">%s</a>: %s</li>`, t.Type.Slug, t.Type.Name, t.Count)
				}
				m.raw(`</ul>`)
				m.rawf(`<p>Runtime routes: %s</p>`, data.RuntimeRoutes)
				if data.CanRebuild {
					m.raw(`<form method="post" action="/admin/settings/runtime-routes"><button class="button" type="submit">Rebuild runtime routes</button></form>`)
				}
			})
		},
	}
}

func (c *CMS) insufficientPermissions() trellis.Module {
	return trellis.Module{
		ID: ModuleInsufficientPermissions,
		Component: func(trellis.Props) templ.Component {
			return view(func(m *markup) {
				m.raw(`<h1 class="text-xl font-bold mb-2">Insufficient permissions</h1><p>Your role does not allow access to this page.</p>`)
			})
		},
	}
}

// runtimeRoutes is a data endpoint rebuilding the runtime table in place.
func (c *CMS) runtimeRoutes() trellis.Module {
	return trellis.Module{
		ID: ModuleRuntimeRoutes,
		Action: func(ctx trellis.Context) (trellis.Result, error) {
			if err := c.Rebuild(ctx.Context()); err != nil {
				return trellis.Result{}, err
			}
			ctx.Session().Flash(flashMessage, "Runtime routes rebuilt")
			return trellis.Redirect("/admin"), nil
		},
	}
}
