package cms

import (
	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// VarAdmin holds the admin Menu.
const VarAdmin = "admin"

// MenuItem is one entry of the admin sidebar.
type MenuItem struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Menu is the admin sidebar.
type Menu struct {
	Items []MenuItem `json:"items"`
}

// Add appends an item.
func (m *Menu) Add(path, name string) {
	m.Items = append(m.Items, MenuItem{Path: path, Name: name})
}

// AdminMenu returns the menu published by the admin layout.
func AdminMenu(c trellis.Context) Menu {
	m, _ := trellis.As[Menu](c.Var(VarAdmin))
	return m
}

func stylesheetHead(trellis.Props) templ.Component {
	return view(func(m *markup) {
		m.raw(`<link rel="stylesheet" href="/tailwind.css">`)
	})
}

func (c *CMS) adminLayout() trellis.Module {
	return trellis.Module{
		ID:              ModuleAdminLayout,
		Source:          "admin/layout.js",
		Exports:         []string{"default"},
		AcceptsChildren: true,
		Head:            stylesheetHead,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			trellis.AddBodyClass(ctx, "admin")

			menu := Menu{}
			menu.Add("/admin", "Dashboard")
			menu.Add("/admin/posts?postType=post", "Posts")
			menu.Add("/admin/posts?postType=page", "Pages")
			menu.Add("/admin/field-groups", "Field Groups")
			if middlewares.CurrentRole(ctx).Satisfies(role.Admin) {
				menu.Add("/admin/users", "Users")
			}
			ctx.SetVar(VarAdmin, menu)
			return trellis.Ok(nil), nil
		},
		Component: func(p trellis.Props) templ.Component {
			menu, _ := trellis.As[Menu](p.Vars[VarAdmin])
			return view(func(m *markup) {
				m.raw(`<div class="flex bg-slate-100 w-full h-full"><aside class="bg-slate-900 text-white flex-none w-64 p-4"><ul class="flex flex-col gap-y-2">`)
				for _, item := range menu.Items {
					m.rawf(`<li><a href="%s">%s</a></li>`, item.Path, item.Name)
				}
				m.raw(`</ul><form method="post" action="/auth/logout" class="mt-8"><button type="submit">Log out</button></form></aside>`)
				m.raw(`<main class="w-full px-6 py-4 overflow-auto">`)
				m.render(p.Children)
				m.raw(`</main></div>`)
			})
		},
	}
}

func (c *CMS) authLayout() trellis.Module {
	return trellis.Module{
		ID:              ModuleAuthLayout,
		AcceptsChildren: true,
		Head:            stylesheetHead,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			trellis.AddBodyClass(ctx, "auth")
			return trellis.Ok(nil), nil
		},
		Component: func(p trellis.Props) templ.Component {
			return view(func(m *markup) {
				m.raw(`<div class="flex items-center justify-center min-h-screen bg-slate-100"><div class="w-full max-w-sm rounded-lg border bg-white p-6">`)
				m.render(p.Children)
				m.raw(`</div></div>`)
			})
		},
	}
}
