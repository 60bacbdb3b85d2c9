// Package tailwind serves a tailwind stylesheet that is rebuilt whenever the
// watched directory changed since the last build.
package tailwind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrBuildFailed is returned when the tailwind CLI exits with an error.
var ErrBuildFailed = errors.New("tailwind: build failed")

// Config describes one tailwind build.
type Config struct {
	Bin      string `env:"TAILWIND_BIN" envDefault:"tailwindcss"`
	Input    string `env:"TAILWIND_INPUT" envDefault:"./web/global.css"`
	Content  string `env:"TAILWIND_CONTENT" envDefault:"./**/*.go"`
	Output   string `env:"TAILWIND_OUTPUT" envDefault:"./dist/tailwind.css"`
	WatchDir string `env:"TAILWIND_WATCH_DIR" envDefault:"./dist"`
	Minify   bool   `env:"TAILWIND_MINIFY" envDefault:"false"`
}

// Runner executes a build. The default runs the tailwind CLI.
type Runner func(ctx context.Context, cfg Config) error

// Option configures a Handler.
type Option func(*Handler)

// WithRunner replaces the build runner.
func WithRunner(r Runner) Option {
	return func(h *Handler) {
		h.run = r
	}
}

// WithLogger sets the logger used for build failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// Handler serves Config.Output, rebuilding it first when the modification
// time of Config.WatchDir differs from the one seen at the last build.
type Handler struct {
	run     Runner
	logger  *slog.Logger
	lastMod time.Time
	cfg     Config
	mu      sync.Mutex
}

// NewHandler creates a stylesheet handler.
func NewHandler(cfg Config, opts ...Option) *Handler {
	h := &Handler{
		cfg:    cfg,
		run:    Exec,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP rebuilds the stylesheet when stale and serves it. Build failures
// are logged; the previous output, if any, is still served.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Refresh(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "tailwind build", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	http.ServeFile(w, r, h.cfg.Output)
}

// Refresh runs a build when the watched directory changed.
func (h *Handler) Refresh(ctx context.Context) error {
	stat, err := os.Stat(h.cfg.WatchDir)
	if err != nil {
		return fmt.Errorf("tailwind: stat %s: %w", h.cfg.WatchDir, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	mod := stat.ModTime()
	if mod.Equal(h.lastMod) {
		return nil
	}
	if err := h.run(ctx, h.cfg); err != nil {
		return err
	}
	h.lastMod = mod
	return nil
}

// Exec runs the tailwind CLI for cfg.
func Exec(ctx context.Context, cfg Config) error {
	args := []string{"-i", cfg.Input, "--content", cfg.Content, "-o", cfg.Output}
	if cfg.Minify {
		args = append(args, "--minify")
	}

	out, err := exec.CommandContext(ctx, cfg.Bin, args...).CombinedOutput()
	if err != nil {
		return errors.Join(ErrBuildFailed, err, errors.New(string(out)))
	}
	return nil
}
