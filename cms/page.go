package cms

import (
	"errors"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/markdown"
)

// PageField is a field value prepared for display.
type PageField struct {
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Type  FieldKind `json:"type"`
	Value string    `json:"value"`
	// HTML is the rendered markdown of markdown fields.
	HTML string `json:"html,omitempty"`
	// URL is the public address of image fields.
	URL string `json:"url,omitempty"`
}

// PageData is the loader data of the page template.
type PageData struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Fields []PageField `json:"fields"`
}

// page renders the post behind the matched runtime route.
func (c *CMS) page() trellis.Module {
	return trellis.Module{
		ID:      ModulePage,
		Source:  "templates/page.js",
		Exports: []string{"default"},
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			rt, ok := trellis.MatchedRuntimeRoute(ctx)
			if !ok {
				return trellis.Result{}, trellis.ErrNotFound("page not found")
			}
			post, err := c.store.Post(ctx.Context(), rt.RecordID)
			if errors.Is(err, ErrNotFound) {
				return trellis.Result{}, trellis.ErrNotFound("page not found")
			}
			if err != nil {
				return trellis.Result{}, err
			}
			groups, err := c.store.FieldGroupsFor(ctx.Context(), post.PostTypeID)
			if err != nil {
				return trellis.Result{}, err
			}

			data := PageData{ID: post.ID, Title: post.Title}
			for _, g := range groups {
				for _, f := range g.Fields {
					pf := PageField{Name: f.Name, Slug: f.Slug, Type: f.Type, Value: post.Fields[f.ID]}
					if pf.Value == "" {
						continue
					}
					switch f.Type {
					case FieldMarkdown:
						if pf.HTML, err = markdown.Render(pf.Value); err != nil {
							return trellis.Result{}, err
						}
					case FieldImage:
						if pf.URL, err = ctx.FileURL(pf.Value); err != nil {
							ctx.LogWarn("image url", "key", pf.Value, "error", err)
						}
					}
					data.Fields = append(data.Fields, pf)
				}
			}

			ctx.SetVar(trellis.VarTitle, post.Title)
			trellis.AddBodyClass(ctx, "page")
			return trellis.Ok(data), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[PageData](p)
			return view(func(m *markup) {
				m.raw(`<article>`)
				m.rawf(`<div>Page: %s</div>`, data.Title)
				for _, f := range data.Fields {
					m.rawf(`<section data-field="%s">`, f.Slug)
					switch {
					case f.HTML != "":
						m.raw(f.HTML)
					case f.Type == FieldImage && f.URL != "":
						m.rawf(`<img src="%s" alt="%s">`, f.URL, f.Name)
					case f.Type == FieldImage:
					default:
						m.text(f.Value)
					}
					m.raw(`</section>`)
				}
				m.raw(`</article>`)
			})
		},
	}
}
