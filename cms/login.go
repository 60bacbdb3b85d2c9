package cms

import (
	"errors"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/validator"
)

// LoginData is the loader data of the login page.
type LoginData struct {
	Error string `json:"error,omitempty"`
}

func (c *CMS) login() trellis.Module {
	return trellis.Module{
		ID: ModuleLogin,
		Action: func(ctx trellis.Context) (trellis.Result, error) {
			email, password := ctx.Form("email"), ctx.Form("password")
			if err := validator.Apply(
				validator.Email("email", email),
				validator.MinLenString("password", password, 8),
			); err != nil {
				return trellis.Invalid(validator.ExtractValidationErrors(err).Fields(), map[string]string{"email": email}), nil
			}

			u, err := Authenticate(ctx.Context(), c.store, email, password)
			if errors.Is(err, ErrInvalidCredentials) {
				ctx.LogWarn("login failed", "email", NormalizeEmail(email))
				ctx.Session().Flash(flashError, err.Error())
				return trellis.Ok(trellis.FormErrors{Values: map[string]string{"email": email}}), nil
			}
			if err != nil {
				return trellis.Result{}, err
			}

			ctx.Session().Set(trellis.SessionUserKey, u.ID)
			return trellis.Redirect("/admin"), nil
		},
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			_, errMsg := flashes(ctx)
			return trellis.Ok(LoginData{Error: errMsg}), nil
		},
		Component: func(p trellis.Props) templ.Component {
			data := trellis.LoaderData[LoginData](p)
			form := trellis.ActionData[trellis.FormErrors](p)
			return view(func(m *markup) {
				m.raw(`<h1 class="text-2xl font-extrabold text-center mb-5">Login</h1>`)
				m.raw(`<form method="post" class="flex flex-col gap-y-4">`)
				m.input("email", "email", "Email", form.Values["email"], form.Errors["email"])
				m.input("password", "password", "Password", "", form.Errors["password"])
				if data.Error != "" {
					m.rawf(`<div class="text-red-500">%s</div>`, data.Error)
				}
				m.raw(`<button class="button py-2 mt-2" type="submit">Submit</button></form>`)
			})
		},
	}
}

// logout is a data endpoint. Only the POST action clears the session; a GET
// leaves it intact so links and prefetches cannot sign the user out.
func (c *CMS) logout() trellis.Module {
	return trellis.Module{
		ID: ModuleLogout,
		Action: func(ctx trellis.Context) (trellis.Result, error) {
			ctx.DestroySession()
			return trellis.Redirect("/auth/login"), nil
		},
		Loader: func(ctx trellis.Context) (trellis.Result, error) {
			if ctx.UserID() != "" {
				return trellis.Redirect("/admin"), nil
			}
			return trellis.Redirect("/auth/login"), nil
		},
	}
}
