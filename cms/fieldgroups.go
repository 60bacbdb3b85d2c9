package cms

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/slug"
	"github.com/dmitrymomot/trellis/pkg/validator"
)

// maxFields bounds the indexed field rows read from a submitted form.
const maxFields = 100

// FieldGroupsData is the loader data of the field group list.
type FieldGroupsData struct {
	Groups  []FieldGroup `json:"groups"`
	Message string       `json:"message,omitempty"`
}

// FieldGroupEditData is the loader data of the field group form.
type FieldGroupEditData struct {
	Group      *FieldGroup `json:"group,omitempty"`
	FieldTypes []FieldType `json:"field_types"`
	PostTypes  []PostType  `json:"post_types"`
	Message    string      `json:"message,omitempty"`
}

func (c *CMS) fieldGroups() trellis.Module {
	return trellis.Module{
		ID: ModuleFieldGroups,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			groups, err := c.store.FieldGroups(ctx.Context())
			if err != nil {
				return trellis.Result{}, err
			}
			message, _ := flashes(ctx)
			return trellis.Ok(FieldGroupsData{Groups: groups, Message: message}), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[FieldGroupsData](p)
			return view(func(m *markup) {
				m.alert("success", data.Message)
				m.raw(`<div class="flex justify-between mb-4"><h1 class="text-xl font-bold">Field Groups</h1><a class="button" href="/admin/field-groups/edit">New</a></div>`)
				m.raw(`<table class="w-full"><thead><tr><th>Name</th><th>Fields</th><th></th></tr></thead><tbody>`)
				for _, g := range data.Groups {
					m.rawf(`<tr><td><a href="/admin/field-groups/edit?id=%s">%s</a></td><td>%s</td>`, g.ID, g.Name, len(g.Fields))
					m.rawf(`<td><form method="post" action="/admin/field-groups/delete?id=%s"><button type="submit">Delete</button></form></td></tr>`, g.ID)
				}
				m.raw(`</tbody></table>`)
			})
		},
	}
}

func (c *CMS) fieldGroupEdit() trellis.Module {
	return trellis.Module{
		ID: ModuleFieldGroupEdit,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			var (
				data FieldGroupEditData
				err  error
			)
			if data.FieldTypes, err = c.store.FieldTypes(ctx.Context()); err != nil {
				return trellis.Result{}, err
			}
			if data.PostTypes, err = c.store.PostTypes(ctx.Context()); err != nil {
				return trellis.Result{}, err
			}
			if id := ctx.Query("id"); id != "" {
				g, err := c.store.FieldGroup(ctx.Context(), id)
				if errors.Is(err, ErrNotFound) {
					return trellis.Redirect("/admin/field-groups"), nil
				}
				if err != nil {
					return trellis.Result{}, err
				}
				data.Group = &g
			}
			data.Message, _ = flashes(ctx)
			return trellis.Ok(data), nil
		},
		Action:    c.saveFieldGroup,
		Component: fieldGroupForm,
	}
}

func (c *CMS) saveFieldGroup(ctx trellis.Context) (trellis.Result, error) {
	form := ctx.PostForm()
	g := FieldGroup{
		ID:          form.Get("id"),
		Name:        form.Get("name"),
		PostTypeIDs: form["postTypes"],
	}

	values := map[string]string{"name": g.Name}
	rules := []validator.Rule{validator.RequiredString("name", g.Name)}
	for i := 0; i < maxFields; i++ {
		prefix := fmt.Sprintf("fields[%d].", i)
		if _, ok := form[prefix+"name"]; !ok {
			break
		}
		f := Field{
			ID:   form.Get(prefix + "id"),
			Name: form.Get(prefix + "name"),
			Slug: form.Get(prefix + "slug"),
			Type: FieldKind(form.Get(prefix + "type")),
		}
		if f.ID == "" && f.Name == "" && f.Slug == "" {
			continue
		}
		if f.Slug == "" {
			f.Slug = slug.Make(f.Name, slug.Separator("_"))
		}
		values[prefix+"name"], values[prefix+"slug"], values[prefix+"type"] = f.Name, f.Slug, string(f.Type)
		rules = append(rules,
			validator.RequiredString(prefix+"name", f.Name),
			validator.RequiredString(prefix+"slug", f.Slug),
			validator.OneOf(prefix+"type", string(f.Type), fieldKinds()...),
		)
		g.Fields = append(g.Fields, f)
	}

	if err := validator.Apply(rules...); err != nil {
		return trellis.Invalid(validator.ExtractValidationErrors(err).Fields(), values), nil
	}

	saved, err := c.store.SaveFieldGroup(ctx.Context(), g)
	if errors.Is(err, ErrNotFound) {
		return trellis.Redirect("/admin/field-groups"), nil
	}
	if err != nil {
		return trellis.Result{}, err
	}

	ctx.Session().Flash(flashMessage, "Field group saved")
	return trellis.Redirect("/admin/field-groups/edit?id=" + url.QueryEscape(saved.ID)), nil
}

// fieldGroupDelete is a data endpoint.
func (c *CMS) fieldGroupDelete() trellis.Module {
	return trellis.Module{
		ID: ModuleFieldGroupDelete,
		Action: func(ctx trellis.Context) (trellis.Result, error) {
			id := ctx.Query("id")
			if id == "" {
				return trellis.Ok(map[string]string{"error": "No id provided"}).WithStatus(400), nil
			}
			if err := c.store.DeleteFieldGroup(ctx.Context(), id); err != nil && !errors.Is(err, ErrNotFound) {
				return trellis.Result{}, err
			}
			ctx.Session().Flash(flashMessage, "Field group deleted")
			return trellis.Redirect("/admin/field-groups"), nil
		},
	}
}

func fieldKinds() []string {
	out := make([]string, len(DefaultFieldTypes))
	for i, ft := range DefaultFieldTypes {
		out[i] = string(ft.ID)
	}
	return out
}

func fieldGroupForm(p trellis.Props) templ.Component {
	data := trellis.LoaderData[FieldGroupEditData](p)
	form := trellis.ActionData[trellis.FormErrors](p)

	title, name := "New Field Group", ""
	var fields []Field
	var attached []string
	if data.Group != nil {
		title, name = "Edit Field Group: "+data.Group.Name, data.Group.Name
		fields, attached = data.Group.Fields, data.Group.PostTypeIDs
	}
	if v, ok := form.Values["name"]; ok {
		name = v
	}

	types := make([]option, len(data.FieldTypes))
	for i, ft := range data.FieldTypes {
		types[i] = option{Value: string(ft.ID), Label: ft.Name}
	}

	return view(func(m *markup) {
		m.alert("success", data.Message)
		m.raw(`<form method="post" class="grid grid-cols-3 gap-x-10"><div class="col-span-2 rounded-lg border bg-white p-5">`)
		m.rawf(`<h1 class="text-lg font-bold mb-4">%s</h1>`, title)
		if data.Group != nil {
			m.rawf(`<input type="hidden" name="id" value="%s">`, data.Group.ID)
		}
		m.input("text", "name", "Name", name, form.Errors["name"])

		m.raw(`<fieldset class="my-4"><legend>Post types</legend>`)
		for _, pt := range data.PostTypes {
			m.checkbox("postTypes", pt.ID, pt.Name, slices.Contains(attached, pt.ID))
		}
		m.raw(`</fieldset>`)

		m.raw(`<table class="w-full"><thead><tr><th>Order</th><th>Field</th></tr></thead><tbody>`)
		// The trailing blank row adds a field; it is ignored when left empty.
		rows := append(slices.Clone(fields), Field{Type: FieldText})
		for i, f := range rows {
			prefix := fmt.Sprintf("fields[%d].", i)
			m.rawf(`<tr><td>%s</td><td><div class="flex flex-col gap-y-4">`, i+1)
			m.selectInput(prefix+"type", "Field type", string(f.Type), types, form.Errors[prefix+"type"])
			m.input("text", prefix+"name", "Name", f.Name, form.Errors[prefix+"name"])
			m.input("text", prefix+"slug", "Slug", f.Slug, form.Errors[prefix+"slug"])
			if f.ID != "" {
				m.rawf(`<input type="hidden" name="%sid" value="%s">`, prefix, f.ID)
			}
			m.raw(`</div></td></tr>`)
		}
		m.raw(`</tbody></table>`)
		m.raw(`</div><div class="px-4 py-4 bg-white border rounded-lg"><button class="button" type="submit">Save</button></div></form>`)
	})
}
