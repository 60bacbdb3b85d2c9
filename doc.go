// Package trellis is a server-rendering web framework built around nested
// route modules.
//
// A module is a layout or a leaf. It may carry a Loader, an Action, a
// Component and a Head. Routes bind URL patterns to ordered module chains;
// the outermost layout comes first, the leaf last.
//
// # Quick Start
//
//	app := trellis.New(
//	    trellis.WithModules(
//	        trellis.Module{ID: "routes/root", Component: views.Root, AcceptsChildren: true},
//	        trellis.Module{ID: "routes/home", Loader: loadHome, Component: views.Home},
//	    ),
//	    trellis.WithRoutes(
//	        trellis.Route{Pattern: "/", Modules: []string{"routes/root", "routes/home"}},
//	    ),
//	    trellis.WithSession(),
//	    trellis.WithCookieOptions(trellis.WithCookieSecret(os.Getenv("SECRET"))),
//	)
//
//	if err := app.Run(":8080"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Loaders and Actions
//
// Hooks return a Result. Ok carries data for the component, Redirect ends
// the request and Invalid re-renders the form with field errors:
//
//	func saveUser(c trellis.Context) (trellis.Result, error) {
//	    if c.Form("email") == "" {
//	        return trellis.Invalid(map[string]string{"email": "required"}, nil), nil
//	    }
//	    id, err := store.CreateUser(c, c.Form("email"))
//	    if err != nil {
//	        return trellis.Result{}, err
//	    }
//	    c.Session().Flash("flash", "User created successfully")
//	    return trellis.Redirect("/admin/users/edit?id=" + id), nil
//	}
//
// On POST all actions run before any loader, and cookies set by actions are
// visible to the loaders of the same request.
//
// # Runtime Routes
//
// Content-driven URLs live in a RuntimeTable that is swapped atomically:
//
//	table := trellis.NewRuntimeTable()
//	app := trellis.New(trellis.WithRuntimeRoutes(table))
//	_ = table.Rebuild(ctx, cmsStore)
//
// Runtime patterns end with a slash. A request for the bare path is
// redirected with 301.
//
// # Middleware
//
// Middleware wraps handlers to add cross-cutting concerns:
//
//	func Section(name string) trellis.Middleware {
//	    return func(next trellis.HandlerFunc) trellis.HandlerFunc {
//	        return func(c trellis.Context) error {
//	            c.SetVar("section", name)
//	            return next(c)
//	        }
//	    }
//	}
//
// # Shutdown
//
// The application handles SIGINT/SIGTERM for graceful shutdown.
// Register cleanup functions with WithShutdownHook.
package trellis
