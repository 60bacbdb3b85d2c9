// Package middlewares provides HTTP middleware for trellis applications.
//
// # Request ID
//
// RequestID assigns a unique ID to each request. An upstream ID from
// X-Request-ID or X-Correlation-ID is reused, otherwise a ULID is generated.
// Use RequestIDExtractor with WithLogger to add request_id to all logs:
//
//	app := trellis.New(
//	    trellis.WithLogger("web", middlewares.RequestIDExtractor(), middlewares.UserIDExtractor()),
//	    trellis.WithMiddleware(middlewares.RequestID()),
//	)
//
// # Recover
//
// Recover converts panics into PanicError for the app error handler.
//
// # Timeout
//
// Timeout bounds request time. On expiry the response writer is abandoned
// and 503 Service Unavailable is sent; writes of the detached handler are
// dropped.
//
// # Authorize
//
// Authorize is route middleware gating a module chain by role:
//
//	trellis.Route{
//	    Pattern:    "/admin/*",
//	    Middleware: []trellis.Middleware{middlewares.Authorize(role.Editor, store)},
//	    Modules:    []string{"routes/admin", "routes/admin/dashboard"},
//	}
//
// Anonymous users are sent to /auth/login, users with a lower role to
// /admin/insufficient-permissions.
//
// # Observability
//
// RequestLogger writes one log line per request. Metrics records Prometheus
// counters and durations; serve them with MetricsHandler.
//
// # Recommended Middleware Order
//
//	trellis.WithMiddleware(
//	    middlewares.RequestID(),
//	    middlewares.RequestLogger(),
//	    middlewares.Metrics(),
//	    middlewares.Recover(),
//	    middlewares.Timeout(10*time.Second),
//	)
package middlewares
