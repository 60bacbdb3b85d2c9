package cms

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/trellis/pkg/role"
)

//go:embed seed.yaml
var defaultSeed []byte

// ErrInvalidSeed is returned for seed documents that reference unknown
// post types or field types.
var ErrInvalidSeed = errors.New("cms: invalid seed")

// Seed is initial content loaded from YAML.
type Seed struct {
	Users       []SeedUser       `yaml:"users"`
	PostTypes   []PostType       `yaml:"post_types"`
	FieldGroups []SeedFieldGroup `yaml:"field_groups"`
	Posts       []SeedPost       `yaml:"posts"`
}

// SeedUser is a user with a plain password.
type SeedUser struct {
	Name     string    `yaml:"name"`
	Email    string    `yaml:"email"`
	Password string    `yaml:"password"`
	Role     role.Role `yaml:"role"`
}

// SeedFieldGroup references post types by slug.
type SeedFieldGroup struct {
	Name      string   `yaml:"name"`
	PostTypes []string `yaml:"post_types"`
	Fields    []Field  `yaml:"fields"`
}

// SeedPost references its post type by slug and keys field values by
// field slug.
type SeedPost struct {
	Fields map[string]string `yaml:"fields"`
	Type   string            `yaml:"type"`
	Title  string            `yaml:"title"`
	Slug   string            `yaml:"slug"`
}

// SeedStats counts the records created by Apply.
type SeedStats struct {
	Users       int
	PostTypes   int
	FieldGroups int
	Posts       int
}

// LoadSeed decodes a YAML seed document.
func LoadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	return &s, nil
}

// LoadSeedFile decodes the seed at path.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}

// DefaultSeed returns the built-in seed: the "post" and "page" post types.
func DefaultSeed() *Seed {
	var s Seed
	if err := yaml.Unmarshal(defaultSeed, &s); err != nil {
		panic(fmt.Sprintf("cms: default seed: %v", err))
	}
	return &s
}

// Apply creates the records of s that do not exist yet. Users match by
// email, post types by slug, field groups by name and posts by slug within
// their post type, so applying a seed twice creates nothing the second time.
func (s *Seed) Apply(ctx context.Context, store Store) (SeedStats, error) {
	var stats SeedStats

	for _, u := range s.Users {
		if !u.Role.Valid() {
			return stats, fmt.Errorf("%w: user %s: %w", ErrInvalidSeed, u.Email, role.ErrUnknownRole)
		}
		_, err := store.UserByEmail(ctx, NormalizeEmail(u.Email))
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return stats, err
		}
		hash, err := HashPassword(u.Password)
		if err != nil {
			return stats, err
		}
		if _, err := store.CreateUser(ctx, User{Name: u.Name, Email: NormalizeEmail(u.Email), PasswordHash: hash, Role: u.Role}); err != nil {
			return stats, err
		}
		stats.Users++
	}

	types := map[string]PostType{}
	for _, pt := range s.PostTypes {
		existing, err := store.PostType(ctx, pt.Slug)
		switch {
		case err == nil:
			types[pt.Slug] = existing
			continue
		case !errors.Is(err, ErrNotFound):
			return stats, err
		}
		created, err := store.CreatePostType(ctx, PostType{Name: pt.Name, Slug: pt.Slug})
		if err != nil {
			return stats, err
		}
		types[pt.Slug] = created
		stats.PostTypes++
	}
	lookupType := func(slug string) (PostType, error) {
		if pt, ok := types[slug]; ok {
			return pt, nil
		}
		pt, err := store.PostType(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			return pt, fmt.Errorf("%w: unknown post type %q", ErrInvalidSeed, slug)
		}
		if err == nil {
			types[slug] = pt
		}
		return pt, err
	}

	groups, err := store.FieldGroups(ctx)
	if err != nil {
		return stats, err
	}
	known := map[string]bool{}
	for _, g := range groups {
		known[g.Name] = true
	}
	for _, sg := range s.FieldGroups {
		if known[sg.Name] {
			continue
		}
		g := FieldGroup{Name: sg.Name}
		for _, slug := range sg.PostTypes {
			pt, err := lookupType(slug)
			if err != nil {
				return stats, err
			}
			g.PostTypeIDs = append(g.PostTypeIDs, pt.ID)
		}
		for _, f := range sg.Fields {
			if !ValidFieldKind(f.Type) {
				return stats, fmt.Errorf("%w: field %s: %w", ErrInvalidSeed, f.Slug, ErrUnknownFieldType)
			}
			g.Fields = append(g.Fields, Field{Name: f.Name, Slug: f.Slug, Type: f.Type})
		}
		if _, err := store.SaveFieldGroup(ctx, g); err != nil {
			return stats, err
		}
		known[sg.Name] = true
		stats.FieldGroups++
	}

	for _, sp := range s.Posts {
		pt, err := lookupType(sp.Type)
		if err != nil {
			return stats, err
		}
		posts, err := store.Posts(ctx, pt.ID)
		if err != nil {
			return stats, err
		}
		if containsSlug(posts, sp.Slug) {
			continue
		}

		attached, err := store.FieldGroupsFor(ctx, pt.ID)
		if err != nil {
			return stats, err
		}
		p := Post{PostTypeID: pt.ID, Title: sp.Title, Slug: sp.Slug, Fields: map[string]string{}}
		for _, g := range attached {
			for _, f := range g.Fields {
				if v, ok := sp.Fields[f.Slug]; ok {
					p.Fields[f.ID] = v
				}
			}
		}
		if _, err := store.SavePost(ctx, p); err != nil {
			return stats, err
		}
		stats.Posts++
	}

	return stats, nil
}

func containsSlug(posts []Post, slug string) bool {
	for _, p := range posts {
		if p.Slug == slug {
			return true
		}
	}
	return false
}
