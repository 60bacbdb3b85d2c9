package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/trellis/internal"
)

// RequestLoggerConfig configures the request logger.
type RequestLoggerConfig struct {
	// Skip reports requests that are not logged, e.g. health probes.
	Skip func(r *http.Request) bool
}

// RequestLoggerOption configures RequestLoggerConfig.
type RequestLoggerOption func(*RequestLoggerConfig)

// WithLogSkip sets the predicate of requests that are not logged.
func WithLogSkip(fn func(r *http.Request) bool) RequestLoggerOption {
	return func(cfg *RequestLoggerConfig) {
		cfg.Skip = fn
	}
}

// RequestLogger returns middleware that logs one line per request with
// method, path, status, size and duration. Server errors are logged at
// error level, client errors at warn, the rest at info.
func RequestLogger(opts ...RequestLoggerOption) internal.Middleware {
	cfg := &RequestLoggerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if cfg.Skip != nil && cfg.Skip(c.Request()) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := statusOf(c, err)
			attrs := []any{
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Int64("size", c.ResponseWriter().Size()),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			switch {
			case status >= http.StatusInternalServerError:
				c.LogError("request", attrs...)
			case status >= http.StatusBadRequest:
				c.LogWarn("request", attrs...)
			default:
				c.LogInfo("request", attrs...)
			}
			return err
		}
	}
}
