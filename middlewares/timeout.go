package middlewares

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/trellis/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures the timeout middleware.
type TimeoutConfig struct {
	Message string
	Timeout time.Duration
}

// TimeoutOption configures TimeoutConfig.
type TimeoutOption func(*TimeoutConfig)

// WithTimeoutMessage sets the body of the 503 response.
func WithTimeoutMessage(msg string) TimeoutOption {
	return func(cfg *TimeoutConfig) {
		cfg.Message = msg
	}
}

// Timeout returns middleware that bounds the time a request may take.
//
// The handler runs with a deadline context. When the deadline passes before
// the response was started, the response writer is abandoned (later writes of
// the detached handler are dropped), 503 Service Unavailable is sent and a
// TimeoutError is returned. Loaders and actions observe the cancellation
// through the request context between hooks.
func Timeout(timeout time.Duration, opts ...TimeoutOption) internal.Middleware {
	cfg := &TimeoutConfig{
		Timeout: timeout,
		Message: http.StatusText(http.StatusServiceUnavailable),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			ctx, cancel := context.WithTimeout(c.Context(), cfg.Timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))
			rw := c.ResponseWriter()
			log := c.Logger()

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ctx.Err()
				}
				if !rw.Abandon(http.StatusServiceUnavailable) {
					// The handler already started the response; let it finish.
					return <-done
				}

				log.WarnContext(ctx, "request timeout", "timeout", cfg.Timeout.String())

				w := rw.Unwrap()
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(cfg.Message))

				return &TimeoutError{Duration: cfg.Timeout}
			}
		}
	}
}
