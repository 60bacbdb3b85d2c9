// Package memstore is an in-memory cms.Store. It backs tests and
// single-process development setups; content is lost on restart.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/trellis/cms"
)

// Store keeps CMS content in maps guarded by a mutex.
// Returned records are copies.
type Store struct {
	users       map[string]cms.User
	postTypes   map[string]cms.PostType
	posts       map[string]cms.Post
	fieldGroups map[string]cms.FieldGroup
	now         func() time.Time
	mu          sync.RWMutex
}

var _ cms.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       map[string]cms.User{},
		postTypes:   map[string]cms.PostType{},
		posts:       map[string]cms.Post{},
		fieldGroups: map[string]cms.FieldGroup{},
		now:         time.Now,
	}
}

func (s *Store) Users(_ context.Context) ([]cms.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.users))
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) User(_ context.Context, id string) (cms.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return cms.User{}, cms.ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (cms.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.userByEmail(email); ok {
		return u, nil
	}
	return cms.User{}, cms.ErrNotFound
}

func (s *Store) userByEmail(email string) (cms.User, bool) {
	email = cms.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return cms.User{}, false
}

func (s *Store) CreateUser(_ context.Context, u cms.User) (cms.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = cms.NormalizeEmail(u.Email)
	if _, taken := s.userByEmail(u.Email); taken {
		return cms.User{}, cms.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u cms.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return cms.ErrNotFound
	}
	u.Email = cms.NormalizeEmail(u.Email)
	if other, taken := s.userByEmail(u.Email); taken && other.ID != u.ID {
		return cms.ErrDuplicateEmail
	}
	if u.PasswordHash == "" {
		u.PasswordHash = current.PasswordHash
	}
	u.CreatedAt = current.CreatedAt
	s.users[u.ID] = u
	return nil
}

func (s *Store) PostTypes(_ context.Context) ([]cms.PostType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.postTypes))
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) PostType(_ context.Context, slug string) (cms.PostType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pt := range s.postTypes {
		if pt.Slug == slug {
			return pt, nil
		}
	}
	return cms.PostType{}, cms.ErrNotFound
}

func (s *Store) CreatePostType(_ context.Context, pt cms.PostType) (cms.PostType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.postTypes {
		if existing.Slug == pt.Slug {
			return cms.PostType{}, cms.ErrDuplicateSlug
		}
	}
	pt.ID = uuid.NewString()
	s.postTypes[pt.ID] = pt
	return pt, nil
}

func (s *Store) Posts(_ context.Context, postTypeID string) ([]cms.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cms.Post
	for _, p := range s.posts {
		if p.PostTypeID == postTypeID {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Post(_ context.Context, id string) (cms.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return cms.Post{}, cms.ErrNotFound
	}
	return clonePost(p), nil
}

func (s *Store) SavePost(_ context.Context, p cms.Post) (cms.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postTypes[p.PostTypeID]; !ok {
		return cms.Post{}, cms.ErrNotFound
	}
	for _, other := range s.posts {
		if other.ID != p.ID && other.PostTypeID == p.PostTypeID && other.Slug == p.Slug {
			return cms.Post{}, cms.ErrDuplicateSlug
		}
	}

	now := s.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	} else {
		current, ok := s.posts[p.ID]
		if !ok {
			return cms.Post{}, cms.ErrNotFound
		}
		p.CreatedAt = current.CreatedAt
	}
	p.UpdatedAt = now
	p = clonePost(p)
	s.posts[p.ID] = p
	return clonePost(p), nil
}

func (s *Store) FieldTypes(_ context.Context) ([]cms.FieldType, error) {
	return slices.Clone(cms.DefaultFieldTypes), nil
}

func (s *Store) FieldGroups(_ context.Context) ([]cms.FieldGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups(func(cms.FieldGroup) bool { return true }), nil
}

func (s *Store) FieldGroupsFor(_ context.Context, postTypeID string) ([]cms.FieldGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups(func(g cms.FieldGroup) bool {
		return slices.Contains(g.PostTypeIDs, postTypeID)
	}), nil
}

func (s *Store) groups(keep func(cms.FieldGroup) bool) []cms.FieldGroup {
	var out []cms.FieldGroup
	for _, g := range s.fieldGroups {
		if keep(g) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) FieldGroup(_ context.Context, id string) (cms.FieldGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.fieldGroups[id]
	if !ok {
		return cms.FieldGroup{}, cms.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (s *Store) SaveFieldGroup(_ context.Context, g cms.FieldGroup) (cms.FieldGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g = cloneGroup(g)
	if g.ID == "" {
		g.ID = uuid.NewString()
	} else if _, ok := s.fieldGroups[g.ID]; !ok {
		return cms.FieldGroup{}, cms.ErrNotFound
	}
	for i, f := range g.Fields {
		if !cms.ValidFieldKind(f.Type) {
			return cms.FieldGroup{}, cms.ErrUnknownFieldType
		}
		if f.ID == "" {
			g.Fields[i].ID = uuid.NewString()
		}
	}
	s.fieldGroups[g.ID] = g
	return cloneGroup(g), nil
}

func (s *Store) DeleteFieldGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fieldGroups[id]; !ok {
		return cms.ErrNotFound
	}
	delete(s.fieldGroups, id)
	return nil
}

func clonePost(p cms.Post) cms.Post {
	p.Fields = maps.Clone(p.Fields)
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	return p
}

func cloneGroup(g cms.FieldGroup) cms.FieldGroup {
	g.Fields = slices.Clone(g.Fields)
	g.PostTypeIDs = slices.Clone(g.PostTypeIDs)
	return g
}
