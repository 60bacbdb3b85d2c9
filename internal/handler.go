package internal

// Handler declares routes on a router.
// Handlers are mounted next to the module dispatcher for endpoints that do
// not fit the module model (webhooks, file downloads, JSON APIs).
//
// Example:
//
//	type UploadsHandler struct {
//	    store storage.Storage
//	}
//
//	func (h *UploadsHandler) Routes(r trellis.Router) {
//	    r.GET("/uploads/{key}", h.download)
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers.
// It receives a Context and returns an error.
// Returning a non-nil error triggers the error handler.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns.
// A middleware short-circuits the chain by writing a response (for example a
// redirect) and returning without calling next.
//
// Example:
//
//	func RequireUser(next trellis.HandlerFunc) trellis.HandlerFunc {
//	    return func(c trellis.Context) error {
//	        if c.UserID() == "" {
//	            return c.Redirect(http.StatusFound, "/auth/login")
//	        }
//	        return next(c)
//	    }
//	}
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler handles errors returned from handlers.
type ErrorHandler func(Context, error) error

// chain applies middleware so that the first element runs first.
func chain(h HandlerFunc, mw []Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
