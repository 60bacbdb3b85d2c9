// Package internal implements the trellis runtime.
//
// This package is internal and should not be used directly. Import
// "github.com/dmitrymomot/trellis" instead, which re-exports the public API.
//
// # Request flow
//
// Every request gets one Context. Global middleware runs first, then the
// Dispatcher resolves the path:
//
//  1. Static routes, in registration order. The matched route's middleware
//     wraps the module pipeline.
//  2. Runtime routes (GET and HEAD only). Runtime patterns end with a slash;
//     the bare path is answered with 301 to the slash form.
//  3. The not-found handler.
//
// The pipeline walks the module chain of the route. On POST every Action
// runs first, then every Loader, both in chain order. Hooks return a Result:
//
//	func loadUser(c trellis.Context) (trellis.Result, error) {
//	    user, err := store.GetUser(c, c.Query("id"))
//	    if errors.Is(err, cms.ErrNotFound) {
//	        return trellis.Redirect("/admin/users"), nil
//	    }
//	    if err != nil {
//	        return trellis.Result{}, err
//	    }
//	    return trellis.Ok(user), nil
//	}
//
// A redirect ends the request. Set-Cookie values of a result are queued on
// the response; while handling a POST they are also merged into the inbound
// request so loaders of the same request see the new session.
//
// # Rendering
//
// The Renderer nests module components outside-in (layouts first, leaf
// innermost) and embeds a hydration snapshot of the variables and hook data
// of every node. Hydrate rebuilds the same tree from the snapshot, so the
// client renders the same markup.
//
// A module without a Component is a data endpoint: its result is sent as
// JSON or as a redirect.
//
// # Errors
//
// Handlers and hooks return errors. HTTPError carries a status code and an
// optional machine-readable ErrorCode; everything else becomes 500.
// Responses are rendered into a buffer, so a failing component never
// produces partial HTML.
package internal
