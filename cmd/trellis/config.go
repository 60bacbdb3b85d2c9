package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/trellis/pkg/config"
	"github.com/dmitrymomot/trellis/pkg/db"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/redis"
	"github.com/dmitrymomot/trellis/pkg/storage"
	"github.com/dmitrymomot/trellis/pkg/tailwind"
)

// Application modes.
const (
	modeDevelopment = "development"
	modeProduction  = "production"
)

// Config is the process configuration.
type Config struct {
	Addr  string `env:"HTTP_ADDR" envDefault:":8080"`
	Mode  string `env:"APP_MODE" envDefault:"production"`
	Title string `env:"APP_TITLE" envDefault:"trellis"`

	CookieSecret string `env:"COOKIE_SECRET"`

	// DATABASE_URL switches content to Postgres. The pool settings are
	// read into DB only when it is set.
	DatabaseURL string `env:"DATABASE_URL"`

	AdminName     string `env:"ADMIN_NAME" envDefault:"Admin"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	SeedFile      string `env:"SEED_FILE"`

	BundleRoot  string `env:"BUNDLE_ROOT" envDefault:"web"`
	BundleOut   string `env:"BUNDLE_OUT" envDefault:"dist"`
	BundleEntry string `env:"BUNDLE_ENTRY" envDefault:"entry.client.js"`

	RebuildSchedule string `env:"RUNTIME_ROUTES_SCHEDULE" envDefault:"@every 10m"`

	LiveReloadPort  int           `env:"LIVERELOAD_PORT" envDefault:"8282"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Log      logger.Config
	Sentry   logger.SentryConfig
	Redis    redis.Config
	Storage  storage.Config
	Tailwind tailwind.Config

	DB db.Config `env:"-"`
}

// Development reports whether the app runs in development mode.
func (c Config) Development() bool {
	return c.Mode == modeDevelopment
}

// loadConfig reads Config from the env files named by --env-file.
func loadConfig(cmd *cobra.Command) (Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load[Config](files...)
	if err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL != "" {
		if cfg.DB, err = config.Load[db.Config](files...); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
