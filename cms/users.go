package cms

import (
	"errors"
	"net/url"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/role"
	"github.com/dmitrymomot/trellis/pkg/validator"
)

// UsersData is the loader data of the users list.
type UsersData struct {
	Users []User `json:"users"`
}

// UserEditData is the loader data of the user form.
type UserEditData struct {
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *CMS) users() trellis.Module {
	return trellis.Module{
		ID: ModuleUsers,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			users, err := c.store.Users(ctx.Context())
			if err != nil {
				return trellis.Result{}, err
			}
			return trellis.Ok(UsersData{Users: users}), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[UsersData](p)
			return view(func(m *markup) {
				m.raw(`<div class="flex justify-between mb-4"><h1 class="text-xl font-bold">Users</h1><a class="button" href="/admin/users/edit">New user</a></div>`)
				m.raw(`<table class="w-full"><thead><tr><th>Name</th><th>E-mail</th><th>Role</th></tr></thead><tbody>`)
				for _, u := range data.Users {
					m.rawf(`<tr><td><a href="/admin/users/edit?id=%s">%s</a></td><td>%s</td><td>%s</td></tr>`, u.ID, u.Name, u.Email, u.Role)
				}
				m.raw(`</tbody></table>`)
			})
		},
	}
}

func (c *CMS) userEdit() trellis.Module {
	return trellis.Module{
		ID: ModuleUserEdit,
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			data := UserEditData{}
			if id := ctx.Query("id"); id != "" {
				u, err := c.store.User(ctx.Context(), id)
				if errors.Is(err, ErrNotFound) {
					return trellis.Redirect("/admin/users"), nil
				}
				if err != nil {
					return trellis.Result{}, err
				}
				data.User = &u
			}
			data.Message, data.Error = flashes(ctx)
			return trellis.Ok(data), nil
		},
		Action: c.saveUser,
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[UserEditData](p)
			form := trellis.ActionData[trellis.FormErrors](p)

			values := map[string]string{"role": string(role.Subscriber)}
			title, button := "Create user", "Create"
			if data.User != nil {
				values["name"], values["email"], values["role"] = data.User.Name, data.User.Email, string(data.User.Role)
				title, button = "Edit user", "Save"
			}
			for k, v := range form.Values {
				values[k] = v
			}

			roles := make([]option, 0, len(role.All))
			for i := len(role.All) - 1; i >= 0; i-- {
				r := string(role.All[i])
				roles = append(roles, option{Value: r, Label: capitalize(r)})
			}

			return view(func(m *markup) {
				m.alert("success", data.Message)
				m.alert("error", data.Error)
				m.rawf(`<h1 class="text-xl font-bold mb-2">%s</h1>`, title)
				m.raw(`<form method="post" class="rounded-lg border bg-white p-5 flex flex-col gap-y-4">`)
				m.input("text", "name", "Name", values["name"], form.Errors["name"])
				m.input("email", "email", "E-mail", values["email"], form.Errors["email"])
				m.input("password", "password", "Password", "", form.Errors["password"])
				m.selectInput("role", "Role", values["role"], roles, form.Errors["role"])
				m.rawf(`<button class="button mr-auto" type="submit">%s</button></form>`, button)
			})
		},
	}
}

func (c *CMS) saveUser(ctx trellis.Context) (trellis.Result, error) {
	id := ctx.Query("id")
	name, email, password, roleName := ctx.Form("name"), ctx.Form("email"), ctx.Form("password"), ctx.Form("role")

	if err := validator.Apply(
		validator.RequiredString("name", name),
		validator.Email("email", email),
		validator.When(id == "", validator.RequiredString("password", password)),
		validator.OneOf("role", roleName, string(role.Admin), string(role.Editor), string(role.Subscriber)),
	); err != nil {
		return trellis.Invalid(validator.ExtractValidationErrors(err).Fields(), map[string]string{
			"name":  name,
			"email": email,
			"role":  roleName,
		}), nil
	}

	self := "/admin/users/edit"
	if id != "" {
		self += "?id=" + url.QueryEscape(id)
	}

	u := User{ID: id, Name: name, Email: NormalizeEmail(email), Role: role.Role(roleName)}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return trellis.Result{}, err
		}
		u.PasswordHash = hash
	}

	message := "User updated successfully"
	var err error
	if id == "" {
		u, err = c.store.CreateUser(ctx.Context(), u)
		message = "User created successfully"
	} else {
		err = c.store.UpdateUser(ctx.Context(), u)
	}

	switch {
	case errors.Is(err, ErrDuplicateEmail):
		ctx.Session().Flash(flashError, err.Error())
		return trellis.Redirect(self), nil
	case errors.Is(err, ErrNotFound):
		return trellis.Redirect("/admin/users"), nil
	case err != nil:
		return trellis.Result{}, err
	}

	ctx.LogInfo("user saved", "id", u.ID, "role", u.Role)
	ctx.Session().Flash(flashMessage, message)
	return trellis.Redirect("/admin/users/edit?id=" + url.QueryEscape(u.ID)), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
