// Package pgstore is the Postgres cms.Store.
//
// The schema ships as goose migrations embedded in Migrations:
//
//	if _, err := pgstore.Migrate(ctx, pool, cfg.MigrationsTable, logger); err != nil {
//	    return err
//	}
//	store := pgstore.New(pool)
package pgstore

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/trellis/cms"
	"github.com/dmitrymomot/trellis/pkg/db"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// Migrations holds the schema migrations under MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations.
const MigrationsDir = "migrations"

const uniqueViolation = "23505"

// Migrate applies the CMS schema, tracking versions in table, and returns
// the resulting version.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) (int64, error) {
	return db.Migrate(ctx, pool, Migrations, MigrationsDir, table, log)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements cms.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ cms.Store = (*Store)(nil)

// New creates a store on pool. The schema must be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return cms.ErrNotFound
	}
	return err
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (cms.User, error) {
	var (
		u cms.User
		r string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &r, &u.CreatedAt); err != nil {
		return cms.User{}, notFound(err)
	}
	u.Role = role.Role(r)
	return u, nil
}

func (s *Store) Users(ctx context.Context) ([]cms.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM cms_users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cms.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) User(ctx context.Context, id string) (cms.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM cms_users WHERE id = $1`, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (cms.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM cms_users WHERE email = $1`, cms.NormalizeEmail(email)))
}

func (s *Store) CreateUser(ctx context.Context, u cms.User) (cms.User, error) {
	u.ID = uuid.NewString()
	u.Email = cms.NormalizeEmail(u.Email)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cms_users (id, name, email, password_hash, role) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
	).Scan(&u.CreatedAt)
	if isUnique(err) {
		return cms.User{}, cms.ErrDuplicateEmail
	}
	if err != nil {
		return cms.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u cms.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cms_users SET name = $2, email = $3, role = $4,
		    password_hash = COALESCE(NULLIF($5, ''), password_hash)
		 WHERE id = $1`,
		u.ID, u.Name, cms.NormalizeEmail(u.Email), string(u.Role), u.PasswordHash,
	)
	if isUnique(err) {
		return cms.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return cms.ErrNotFound
	}
	return nil
}

func (s *Store) PostTypes(ctx context.Context) ([]cms.PostType, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, slug FROM cms_post_types ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cms.PostType, error) {
		var pt cms.PostType
		err := row.Scan(&pt.ID, &pt.Name, &pt.Slug)
		return pt, err
	})
}

func (s *Store) PostType(ctx context.Context, slug string) (cms.PostType, error) {
	var pt cms.PostType
	err := s.pool.QueryRow(ctx, `SELECT id, name, slug FROM cms_post_types WHERE slug = $1`, slug).
		Scan(&pt.ID, &pt.Name, &pt.Slug)
	return pt, notFound(err)
}

func (s *Store) CreatePostType(ctx context.Context, pt cms.PostType) (cms.PostType, error) {
	pt.ID = uuid.NewString()
	_, err := s.pool.Exec(ctx, `INSERT INTO cms_post_types (id, name, slug) VALUES ($1, $2, $3)`, pt.ID, pt.Name, pt.Slug)
	if isUnique(err) {
		return cms.PostType{}, cms.ErrDuplicateSlug
	}
	if err != nil {
		return cms.PostType{}, err
	}
	return pt, nil
}

func (s *Store) Posts(ctx context.Context, postTypeID string) ([]cms.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, post_type_id, title, slug, created_at, updated_at
		 FROM cms_posts WHERE post_type_id = $1 ORDER BY created_at`, postTypeID)
	if err != nil {
		return nil, err
	}
	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].Fields, err = postFields(ctx, s.pool, posts[i].ID); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func scanPost(row pgx.CollectableRow) (cms.Post, error) {
	var p cms.Post
	err := row.Scan(&p.ID, &p.PostTypeID, &p.Title, &p.Slug, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func postFields(ctx context.Context, q querier, postID string) (map[string]string, error) {
	rows, err := q.Query(ctx, `SELECT field_id, value FROM cms_post_fields WHERE post_id = $1`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		out[id] = value
	}
	return out, rows.Err()
}

func (s *Store) Post(ctx context.Context, id string) (cms.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, post_type_id, title, slug, created_at, updated_at FROM cms_posts WHERE id = $1`, id)
	if err != nil {
		return cms.Post{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPost)
	if err != nil {
		return cms.Post{}, notFound(err)
	}
	if p.Fields, err = postFields(ctx, s.pool, p.ID); err != nil {
		return cms.Post{}, err
	}
	return p, nil
}

func (s *Store) SavePost(ctx context.Context, p cms.Post) (cms.Post, error) {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if p.ID == "" {
			p.ID = uuid.NewString()
			err = tx.QueryRow(ctx,
				`INSERT INTO cms_posts (id, post_type_id, title, slug) VALUES ($1, $2, $3, $4)
				 RETURNING created_at, updated_at`,
				p.ID, p.PostTypeID, p.Title, p.Slug,
			).Scan(&p.CreatedAt, &p.UpdatedAt)
		} else {
			err = tx.QueryRow(ctx,
				`UPDATE cms_posts SET post_type_id = $2, title = $3, slug = $4, updated_at = now()
				 WHERE id = $1 RETURNING created_at, updated_at`,
				p.ID, p.PostTypeID, p.Title, p.Slug,
			).Scan(&p.CreatedAt, &p.UpdatedAt)
		}
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(p.Fields))
		for fieldID, value := range p.Fields {
			ids = append(ids, fieldID)
			if _, err := tx.Exec(ctx,
				`INSERT INTO cms_post_fields (post_id, field_id, value) VALUES ($1, $2, $3)
				 ON CONFLICT (post_id, field_id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				p.ID, fieldID, value,
			); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM cms_post_fields WHERE post_id = $1 AND NOT (field_id = ANY($2))`, p.ID, ids)
		return err
	})

	switch {
	case isUnique(err):
		return cms.Post{}, cms.ErrDuplicateSlug
	case errors.Is(err, pgx.ErrNoRows):
		return cms.Post{}, cms.ErrNotFound
	case err != nil:
		return cms.Post{}, err
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	return p, nil
}

func (s *Store) FieldTypes(ctx context.Context) ([]cms.FieldType, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM cms_field_types`)
	if err != nil {
		return nil, err
	}
	types, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cms.FieldType, error) {
		var (
			ft cms.FieldType
			id string
		)
		err := row.Scan(&id, &ft.Name)
		ft.ID = cms.FieldKind(id)
		return ft, err
	})
	if err != nil {
		return nil, err
	}

	// Keep the display order of DefaultFieldTypes.
	byID := make(map[cms.FieldKind]cms.FieldType, len(types))
	for _, ft := range types {
		byID[ft.ID] = ft
	}
	out := make([]cms.FieldType, 0, len(types))
	for _, ft := range cms.DefaultFieldTypes {
		if stored, ok := byID[ft.ID]; ok {
			out = append(out, stored)
		}
	}
	return out, nil
}

func (s *Store) FieldGroups(ctx context.Context) ([]cms.FieldGroup, error) {
	return s.loadGroups(ctx, `SELECT id, name FROM cms_field_groups ORDER BY name`)
}

func (s *Store) FieldGroupsFor(ctx context.Context, postTypeID string) ([]cms.FieldGroup, error) {
	return s.loadGroups(ctx,
		`SELECT g.id, g.name FROM cms_field_groups g
		 JOIN cms_field_group_post_types gp ON gp.field_group_id = g.id
		 WHERE gp.post_type_id = $1 ORDER BY g.name`, postTypeID)
}

func (s *Store) FieldGroup(ctx context.Context, id string) (cms.FieldGroup, error) {
	groups, err := s.loadGroups(ctx, `SELECT id, name FROM cms_field_groups WHERE id = $1`, id)
	if err != nil {
		return cms.FieldGroup{}, err
	}
	if len(groups) == 0 {
		return cms.FieldGroup{}, cms.ErrNotFound
	}
	return groups[0], nil
}

func (s *Store) loadGroups(ctx context.Context, query string, args ...any) ([]cms.FieldGroup, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cms.FieldGroup, error) {
		var g cms.FieldGroup
		err := row.Scan(&g.ID, &g.Name)
		return g, err
	})
	if err != nil {
		return nil, err
	}

	for i := range groups {
		if groups[i].Fields, err = s.fields(ctx, groups[i].ID); err != nil {
			return nil, err
		}
		rows, err := s.pool.Query(ctx, `SELECT post_type_id FROM cms_field_group_post_types WHERE field_group_id = $1`, groups[i].ID)
		if err != nil {
			return nil, err
		}
		if groups[i].PostTypeIDs, err = pgx.CollectRows(rows, pgx.RowTo[string]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *Store) fields(ctx context.Context, groupID string) ([]cms.Field, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, type_id FROM cms_fields WHERE field_group_id = $1 ORDER BY position`, groupID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cms.Field, error) {
		var (
			f  cms.Field
			kt string
		)
		err := row.Scan(&f.ID, &f.Name, &f.Slug, &kt)
		f.Type = cms.FieldKind(kt)
		return f, err
	})
}

func (s *Store) SaveFieldGroup(ctx context.Context, g cms.FieldGroup) (cms.FieldGroup, error) {
	for _, f := range g.Fields {
		if !cms.ValidFieldKind(f.Type) {
			return cms.FieldGroup{}, cms.ErrUnknownFieldType
		}
	}
	fields := make([]cms.Field, len(g.Fields))
	copy(fields, g.Fields)
	g.Fields = fields

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if g.ID == "" {
			g.ID = uuid.NewString()
			if _, err := tx.Exec(ctx, `INSERT INTO cms_field_groups (id, name) VALUES ($1, $2)`, g.ID, g.Name); err != nil {
				return err
			}
		} else {
			tag, err := tx.Exec(ctx, `UPDATE cms_field_groups SET name = $2 WHERE id = $1`, g.ID, g.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return cms.ErrNotFound
			}
		}

		ids := make([]string, 0, len(g.Fields))
		for i := range g.Fields {
			f := &g.Fields[i]
			if f.ID == "" {
				f.ID = uuid.NewString()
			}
			ids = append(ids, f.ID)
			if _, err := tx.Exec(ctx,
				`INSERT INTO cms_fields (id, field_group_id, type_id, name, slug, position) VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO UPDATE SET type_id = EXCLUDED.type_id, name = EXCLUDED.name,
				     slug = EXCLUDED.slug, position = EXCLUDED.position`,
				f.ID, g.ID, string(f.Type), f.Name, f.Slug, i,
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cms_fields WHERE field_group_id = $1 AND NOT (id = ANY($2))`, g.ID, ids); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cms_field_group_post_types WHERE field_group_id = $1`, g.ID); err != nil {
			return err
		}
		for _, pt := range g.PostTypeIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO cms_field_group_post_types (field_group_id, post_type_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				g.ID, pt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return cms.FieldGroup{}, err
	}
	return g, nil
}

func (s *Store) DeleteFieldGroup(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cms_field_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return cms.ErrNotFound
	}
	return nil
}
