package cms

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/slug"
	"github.com/dmitrymomot/trellis/pkg/storage"
	"github.com/dmitrymomot/trellis/pkg/validator"
)

// DateLayout is the storage format of date fields.
const DateLayout = "2006-01-02"

// FieldKey is the form name of a post field.
func FieldKey(fieldID string) string {
	return "field_" + fieldID
}

// PostsData is the loader data of the posts list.
type PostsData struct {
	Type    PostType `json:"type"`
	Posts   []Post   `json:"posts"`
	Message string   `json:"message,omitempty"`
}

// PostEditData is the loader data of the post form.
type PostEditData struct {
	Type       PostType     `json:"type"`
	Post       *Post        `json:"post,omitempty"`
	Groups     []FieldGroup `json:"groups"`
	FieldTypes []FieldType  `json:"field_types"`
	Message    string       `json:"message,omitempty"`
}

// postType resolves the postType query parameter. A missing type ends the
// request with a redirect to the dashboard.
func (c *CMS) postType(ctx trellis.Context) (PostType, *trellis.Result, error) {
	pt, err := c.store.PostType(ctx.Context(), ctx.QueryDefault("postType", DefaultPostType))
	if errors.Is(err, ErrNotFound) {
		r := trellis.Redirect("/admin")
		return PostType{}, &r, nil
	}
	return pt, nil, err
}

func (c *CMS) posts() trellis.Module {
	return trellis.Module{
		ID: ModulePosts,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			pt, redirect, err := c.postType(ctx)
			if redirect != nil || err != nil {
				return deref(redirect), err
			}
			posts, err := c.store.Posts(ctx.Context(), pt.ID)
			if err != nil {
				return trellis.Result{}, err
			}
			message, _ := flashes(ctx)
			return trellis.Ok(PostsData{Type: pt, Posts: posts, Message: message}), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[PostsData](p)
			return view(func(m *markup) {
				m.alert("success", data.Message)
				m.rawf(`<div class="flex justify-between mb-4"><h1 class="text-xl font-bold">%s</h1><a class="button" href="/admin/posts/edit?postType=%s">New</a></div>`, data.Type.Name, data.Type.Slug)
				if len(data.Posts) == 0 {
					m.raw(`<p class="py-10 text-center">No posts</p>`)
					return
				}
				m.raw(`<table class="w-full"><thead><tr><th>Title</th><th>Slug</th><th>Updated</th></tr></thead><tbody>`)
				for _, post := range data.Posts {
					m.rawf(`<tr><td><a href="/admin/posts/edit?postType=%s&amp;id=%s">%s</a></td><td>%s</td><td>%s</td></tr>`,
						data.Type.Slug, post.ID, post.Title, post.Slug, post.UpdatedAt.Format(DateLayout))
				}
				m.raw(`</tbody></table>`)
			})
		},
	}
}

func (c *CMS) postEdit() trellis.Module {
	return trellis.Module{
		ID: ModulePostEdit,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			pt, redirect, err := c.postType(ctx)
			if redirect != nil || err != nil {
				return deref(redirect), err
			}
			data := PostEditData{Type: pt}

			if data.Groups, err = c.store.FieldGroupsFor(ctx.Context(), pt.ID); err != nil {
				return trellis.Result{}, err
			}
			if data.FieldTypes, err = c.store.FieldTypes(ctx.Context()); err != nil {
				return trellis.Result{}, err
			}
			if id := ctx.Query("id"); id != "" {
				post, err := c.store.Post(ctx.Context(), id)
				if errors.Is(err, ErrNotFound) {
					return trellis.Redirect("/admin/posts?postType=" + url.QueryEscape(pt.Slug)), nil
				}
				if err != nil {
					return trellis.Result{}, err
				}
				data.Post = &post
			}
			data.Message, _ = flashes(ctx)
			return trellis.Ok(data), nil
		},
		Action:    c.savePost,
		Component: postForm,
	}
}

func (c *CMS) savePost(ctx trellis.Context) (trellis.Result, error) {
	pt, redirect, err := c.postType(ctx)
	if redirect != nil || err != nil {
		return deref(redirect), err
	}
	groups, err := c.store.FieldGroupsFor(ctx.Context(), pt.ID)
	if err != nil {
		return trellis.Result{}, err
	}

	post := Post{PostTypeID: pt.ID, Fields: map[string]string{}}
	if id := ctx.Query("id"); id != "" {
		existing, err := c.store.Post(ctx.Context(), id)
		if errors.Is(err, ErrNotFound) {
			return trellis.Redirect("/admin/posts?postType=" + url.QueryEscape(pt.Slug)), nil
		}
		if err != nil {
			return trellis.Result{}, err
		}
		post.ID, post.CreatedAt = existing.ID, existing.CreatedAt
		post.Fields = existing.Fields
	}

	post.Title = ctx.Form("title")
	post.Slug = slug.Make(ctx.Form("slug"))
	if post.Slug == "" {
		post.Slug = slug.Make(post.Title)
	}

	values := map[string]string{"title": post.Title, "slug": ctx.Form("slug")}
	rules := []validator.Rule{validator.RequiredString("title", post.Title)}
	fieldErrs := map[string]string{}
	fields := make(map[string]string)

	for _, g := range groups {
		for _, f := range g.Fields {
			key := FieldKey(f.ID)
			v := ctx.Form(key)

			switch f.Type {
			case FieldText:
				rules = append(rules, validator.RequiredString(key, v))
			case FieldNumber:
				rules = append(rules, validator.NumericString(key, v))
			case FieldDate:
				rules = append(rules, validator.DateString(key, v, DateLayout))
			case FieldBoolean:
				if v == "true" || v == "on" {
					v = "true"
				} else {
					v = "false"
				}
			case FieldImage:
				v, err = c.uploadImage(ctx, key, post.Fields[f.ID])
				if err != nil {
					fieldErrs[key] = err.Error()
				}
			}

			values[key] = v
			fields[f.ID] = v
		}
	}
	post.Fields = fields

	if err := validator.Apply(rules...); err != nil || len(fieldErrs) > 0 {
		errs := validator.ExtractValidationErrors(err).Fields()
		if errs == nil {
			errs = map[string]string{}
		}
		for k, v := range fieldErrs {
			errs[k] = v
		}
		return trellis.Invalid(errs, values), nil
	}

	saved, err := c.store.SavePost(ctx.Context(), post)
	if errors.Is(err, ErrDuplicateSlug) {
		return trellis.Invalid(map[string]string{"slug": "is already taken"}, values), nil
	}
	if err != nil {
		return trellis.Result{}, err
	}

	if err := c.scheduleRebuild(ctx); err != nil {
		ctx.LogError("schedule runtime route rebuild", "error", err)
	}

	ctx.LogInfo("post saved", "id", saved.ID, "post_type", pt.Slug)
	ctx.Session().Flash(flashMessage, "Post saved")
	return trellis.Redirect("/admin/posts/edit?postType=" + url.QueryEscape(pt.Slug) + "&id=" + url.QueryEscape(saved.ID)), nil
}

// uploadImage stores the file submitted under key and returns its storage
// key. Without a file, or without storage, current is kept.
func (c *CMS) uploadImage(ctx trellis.Context, key, current string) (string, error) {
	file, header, err := ctx.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return current, nil
	}
	if err != nil {
		return current, err
	}
	defer file.Close()

	info, err := ctx.Upload(file, header.Size, storage.ImagesOnly(), storage.WithPrefix("posts"))
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		ctx.LogWarn("image upload skipped, storage not configured", "field", key)
		return current, nil
	case err != nil:
		return current, err
	}
	return info.Key, nil
}

func postForm(p trellis.Props) templ.Component {
	data := trellis.LoaderData[PostEditData](p)
	form := trellis.ActionData[trellis.FormErrors](p)

	values := map[string]string{}
	if data.Post != nil {
		values["title"], values["slug"] = data.Post.Title, data.Post.Slug
		for id, v := range data.Post.Fields {
			values[FieldKey(id)] = v
		}
	}
	for k, v := range form.Values {
		values[k] = v
	}

	return view(func(m *markup) {
		m.alert("success", data.Message)
		m.raw(`<form method="post" enctype="multipart/form-data" class="grid grid-cols-3 gap-x-10 items-start"><div class="col-span-2 rounded-lg border bg-white p-5">`)
		if data.Post == nil {
			m.rawf(`<h1 class="text-lg font-bold mb-4">New %s</h1>`, data.Type.Name)
		}
		m.input("text", "title", "Title", values["title"], form.Errors["title"])
		m.input("text", "slug", "Slug", values["slug"], form.Errors["slug"])

		m.raw(`<div class="flex flex-col gap-y-4">`)
		for _, g := range data.Groups {
			m.rawf(`<div><h2 class="text-lg font-bold border-b pb-1 mb-4">%s</h2><div class="flex flex-col gap-y-4">`, g.Name)
			for _, f := range g.Fields {
				key := FieldKey(f.ID)
				switch f.Type {
				case FieldText:
					m.input("text", key, f.Name, values[key], form.Errors[key])
				case FieldNumber:
					m.input("number", key, f.Name, values[key], form.Errors[key])
				case FieldDate:
					m.input("date", key, f.Name, values[key], form.Errors[key])
				case FieldBoolean:
					m.checkbox(key, "true", f.Name, values[key] == "true")
				case FieldMarkdown:
					m.input("textarea", key, f.Name, values[key], form.Errors[key])
				case FieldImage:
					m.input("file", key, f.Name, "", form.Errors[key])
					if values[key] != "" {
						m.rawf(`<span class="text-sm">%s</span>`, values[key])
					}
				default:
					m.raw(`<div>This field type is unsupported</div>`)
				}
			}
			m.raw(`</div></div>`)
		}
		m.raw(`</div></div><div class="px-4 py-4 bg-white border rounded-lg"><button class="button" type="submit">Save</button></div></form>`)
	})
}

func deref(r *trellis.Result) trellis.Result {
	if r == nil {
		return trellis.Result{}
	}
	return *r
}
