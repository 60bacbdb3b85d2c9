// Package logger builds the slog loggers used across trellis.
//
// Request-scoped values reach log lines through context extractors, which
// run on every record logged with a context:
//
//	log := logger.New(middlewares.RequestIDExtractor(), middlewares.UserIDExtractor())
//	log.InfoContext(r.Context(), "user saved")
//	// {"level":"INFO","msg":"user saved","request_id":"01J...","user_id":"..."}
//
// NewWithConfig selects level and format (json or text), usually from
// LOG_LEVEL and LOG_FORMAT. NewWithSentry additionally fans records out to
// Sentry: errors become issues, warnings are stored as logs. With an empty
// SENTRY_DSN it behaves like NewWithConfig.
package logger
