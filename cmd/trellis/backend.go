package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/trellis/cms"
	"github.com/dmitrymomot/trellis/cms/memstore"
	"github.com/dmitrymomot/trellis/cms/pgstore"
	"github.com/dmitrymomot/trellis/pkg/db"
	"github.com/dmitrymomot/trellis/pkg/job"
)

// errNoDatabase is returned by commands that need Postgres.
var errNoDatabase = errors.New("DATABASE_URL is not set")

// backend is the content store and, with Postgres, its pool.
type backend struct {
	store cms.Store
	pool  *pgxpool.Pool
}

// openBackend connects to Postgres when DATABASE_URL is set and falls back
// to an in-memory store otherwise.
func openBackend(ctx context.Context, cfg Config, log *slog.Logger) (*backend, error) {
	if cfg.DatabaseURL == "" {
		log.WarnContext(ctx, "DATABASE_URL is not set, content is kept in memory")
		return &backend{store: memstore.New()}, nil
	}

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &backend{store: pgstore.New(pool), pool: pool}, nil
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// migrate applies the CMS and job queue schemas.
func (b *backend) migrate(ctx context.Context, cfg Config, log *slog.Logger) error {
	if b.pool == nil {
		return errNoDatabase
	}
	version, err := pgstore.Migrate(ctx, b.pool, cfg.DB.MigrationsTable, log)
	if err != nil {
		return err
	}
	applied, err := job.Migrate(ctx, b.pool)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "schema up to date", "cms_version", version, "job_migrations_applied", applied)
	return nil
}

// seed applies the seed file, or the default seed, and ensures the admin
// account from the environment.
func (b *backend) seed(ctx context.Context, cfg Config, log *slog.Logger) error {
	seed := cms.DefaultSeed()
	if cfg.SeedFile != "" {
		var err error
		if seed, err = cms.LoadSeedFile(cfg.SeedFile); err != nil {
			return err
		}
	}
	stats, err := seed.Apply(ctx, b.store)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "seed applied",
		"users", stats.Users,
		"post_types", stats.PostTypes,
		"field_groups", stats.FieldGroups,
		"posts", stats.Posts,
	)

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := cms.EnsureAdmin(ctx, b.store, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.InfoContext(ctx, "admin account created", "email", cms.NormalizeEmail(cfg.AdminEmail))
	}
	return nil
}
