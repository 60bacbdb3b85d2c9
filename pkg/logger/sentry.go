package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	Release     string `env:"SENTRY_RELEASE"`
	// Errors always become Sentry issues. Warnings are kept as Sentry logs
	// unless MinLevel is error.
	MinLevel slog.Level `env:"-"`
}

// NewWithSentry creates a logger writing to stdout and to Sentry. Without a
// DSN, or when the SDK fails to start, it logs to stdout only.
func NewWithSentry(cfg SentryConfig, logCfg Config, extractors ...ContextExtractor) *slog.Logger {
	stdout := newHandler(logCfg, os.Stdout)
	if cfg.DSN == "" {
		return slog.New(WithExtractors(stdout, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(stdout).Error("sentry init failed", slog.String("error", err.Error()))
		return slog.New(WithExtractors(stdout, extractors...))
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevels = []slog.Level{slog.LevelError}
	}
	sh := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	return slog.New(WithExtractors(fanout{stdout, sh}, extractors...))
}

// FlushSentry waits for buffered Sentry events. It is shaped as an App
// shutdown hook.
func FlushSentry(ctx context.Context) error {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	sentry.Flush(timeout)
	return nil
}
