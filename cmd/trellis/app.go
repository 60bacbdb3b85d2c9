package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/cms"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/bundle"
	"github.com/dmitrymomot/trellis/pkg/cache"
	"github.com/dmitrymomot/trellis/pkg/db"
	"github.com/dmitrymomot/trellis/pkg/job"
	"github.com/dmitrymomot/trellis/pkg/livereload"
	"github.com/dmitrymomot/trellis/pkg/logger"
	rdb "github.com/dmitrymomot/trellis/pkg/redis"
	"github.com/dmitrymomot/trellis/pkg/storage"
	"github.com/dmitrymomot/trellis/pkg/tailwind"
)

// errCookieSecret is returned when COOKIE_SECRET cannot sign sessions.
var errCookieSecret = errors.New("COOKIE_SECRET must be at least 32 bytes")

func newLogger(cfg Config) *slog.Logger {
	return logger.NewWithSentry(cfg.Sentry, cfg.Log,
		middlewares.RequestIDExtractor(),
		middlewares.UserIDExtractor(),
	)
}

// buildApp wires the CMS, the ambient middleware and the optional
// infrastructure (Redis, S3, River) into an App.
func buildApp(ctx context.Context, cfg Config, log *slog.Logger, be *backend) (*trellis.App, *cms.CMS, error) {
	if len(cfg.CookieSecret) < 32 {
		return nil, nil, errCookieSecret
	}
	dev := cfg.Development()

	site := cms.New(be.store, trellis.NewRuntimeTable(), cms.WithLogger(log))

	var app *trellis.App
	checks := []trellis.HealthOption{}
	opts := []trellis.Option{
		trellis.WithCustomLogger(log),
		trellis.WithTitle(cfg.Title),
		trellis.WithCookieOptions(
			trellis.WithCookieSecret(cfg.CookieSecret),
			trellis.WithCookieSecure(!dev),
		),
		trellis.WithSession(),
		trellis.WithMiddleware(
			middlewares.Recover(),
			middlewares.RequestID(),
			middlewares.RequestLogger(middlewares.WithLogSkip(func(r *http.Request) bool {
				return strings.HasPrefix(r.URL.Path, "/health/") || r.URL.Path == "/metrics"
			})),
			middlewares.Metrics(),
			middlewares.Timeout(cfg.RequestTimeout),
		),
		trellis.WithHTTPHandler("/metrics", middlewares.MetricsHandler(prometheus.DefaultGatherer), http.MethodGet),
		trellis.WithHTTPHandler("/tailwind.css",
			tailwind.NewHandler(cfg.Tailwind, tailwind.WithLogger(log)),
			http.MethodGet, http.MethodHead,
		),
		trellis.WithStylesheet("/tailwind.css"),
		trellis.WithShutdownHook(logger.FlushSentry),
	}
	opts = append(opts, site.Options()...)

	// Bundles are keyed by content, so replicas sharing Redis build once.
	var manifests cache.Cache[*bundle.Manifest] = cache.NewMemory[*bundle.Manifest](cache.WithMaxEntries(256))
	if cfg.Redis.URL != "" {
		client, err := rdb.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		manifests = cache.NewRedis[*bundle.Manifest](client, cache.WithPrefix("trellis:bundle"))
		checks = append(checks, trellis.WithReadinessCheck("redis", rdb.Healthcheck(client)))
		opts = append(opts, trellis.WithShutdownHook(rdb.Shutdown(client)))
	}
	esbuild := bundle.NewEsbuild(cfg.BundleRoot, cfg.BundleOut,
		bundle.WithMinify(!dev),
		bundle.WithSourcemap(dev),
	)
	if err := os.MkdirAll(cfg.BundleOut, 0o755); err != nil {
		return nil, nil, err
	}
	opts = append(opts,
		trellis.WithBundler(bundle.NewCached(esbuild, manifests, cfg.BundleRoot), cfg.BundleEntry),
		trellis.WithAssets("/"+cfg.BundleOut+"/", os.DirFS("."), cfg.BundleOut),
	)

	if dev {
		lr := livereload.New(log)
		opts = append(opts,
			trellis.WithStartupHook(lr.Start(cfg.LiveReloadPort)),
			trellis.WithLiveReload(livereload.Script(cfg.LiveReloadPort)),
		)
	}

	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3(cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, trellis.WithStorage(s3))
	}

	if be.pool != nil {
		opts = append(opts,
			trellis.WithJobs(be.pool,
				job.WithLogger(log),
				job.WithTask[cms.RebuildPayload](cms.NewRebuildRoutesTask(site)),
				job.WithScheduledTask(cms.NewRebuildRoutesSchedule(site, cfg.RebuildSchedule)),
			),
			trellis.WithShutdownHook(db.Shutdown(be.pool)),
		)
		checks = append(checks,
			trellis.WithReadinessCheck("postgres", db.Healthcheck(be.pool)),
			trellis.WithReadinessCheck("jobs", func(ctx context.Context) error {
				return job.Healthcheck(app.JobWorker().Manager())(ctx)
			}),
		)
	}
	opts = append(opts, trellis.WithHealthChecks(checks...))

	app = trellis.New(opts...)
	return app, site, nil
}
