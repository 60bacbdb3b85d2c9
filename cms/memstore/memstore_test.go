package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/cms"
	"github.com/dmitrymomot/trellis/cms/memstore"
	"github.com/dmitrymomot/trellis/pkg/role"
)

func TestUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	u, err := s.CreateUser(ctx, cms.User{Name: "A", Email: " A@Example.com", PasswordHash: "h1", Role: role.Admin})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = s.CreateUser(ctx, cms.User{Name: "B", Email: "a@example.com"})
	require.ErrorIs(t, err, cms.ErrDuplicateEmail)

	other, err := s.CreateUser(ctx, cms.User{Name: "B", Email: "b@example.com", Role: role.Editor})
	require.NoError(t, err)

	other.Email = "a@example.com"
	require.ErrorIs(t, s.UpdateUser(ctx, other), cms.ErrDuplicateEmail)

	u.Name = "Renamed"
	u.PasswordHash = ""
	require.NoError(t, s.UpdateUser(ctx, u))
	got, err := s.UserByEmail(ctx, "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "h1", got.PasswordHash)

	require.ErrorIs(t, s.UpdateUser(ctx, cms.User{ID: "missing"}), cms.ErrNotFound)
	_, err = s.User(ctx, "missing")
	require.ErrorIs(t, err, cms.ErrNotFound)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestPosts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	page, err := s.CreatePostType(ctx, cms.PostType{Name: "Pages", Slug: "page"})
	require.NoError(t, err)
	_, err = s.CreatePostType(ctx, cms.PostType{Name: "Pages again", Slug: "page"})
	require.ErrorIs(t, err, cms.ErrDuplicateSlug)
	post, err := s.CreatePostType(ctx, cms.PostType{Name: "Posts", Slug: "post"})
	require.NoError(t, err)

	p, err := s.SavePost(ctx, cms.Post{PostTypeID: page.ID, Title: "About", Slug: "about", Fields: map[string]string{"f": "v"}})
	require.NoError(t, err)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = s.SavePost(ctx, cms.Post{PostTypeID: page.ID, Title: "About 2", Slug: "about"})
	require.ErrorIs(t, err, cms.ErrDuplicateSlug)

	_, err = s.SavePost(ctx, cms.Post{PostTypeID: post.ID, Title: "About", Slug: "about"})
	require.NoError(t, err, "slugs are unique per post type")

	_, err = s.SavePost(ctx, cms.Post{PostTypeID: "missing", Slug: "x"})
	require.ErrorIs(t, err, cms.ErrNotFound)

	got, err := s.Post(ctx, p.ID)
	require.NoError(t, err)
	got.Fields["f"] = "changed"
	again, err := s.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Fields["f"], "returned posts are copies")

	p.Title = "About us"
	updated, err := s.SavePost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "About us", updated.Title)

	types, err := s.PostTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "page", types[0].Slug)
}

func TestFieldGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()

	fields := []cms.Field{{Name: "Body", Slug: "body", Type: cms.FieldMarkdown}}
	g, err := s.SaveFieldGroup(ctx, cms.FieldGroup{Name: "Content", Fields: fields, PostTypeIDs: []string{"pt"}})
	require.NoError(t, err)
	require.NotEmpty(t, g.Fields[0].ID)
	assert.Empty(t, fields[0].ID, "the input slice is not modified")

	_, err = s.SaveFieldGroup(ctx, cms.FieldGroup{Name: "Bad", Fields: []cms.Field{{Name: "V", Type: "video"}}})
	require.ErrorIs(t, err, cms.ErrUnknownFieldType)

	_, err = s.SaveFieldGroup(ctx, cms.FieldGroup{ID: "missing", Name: "X"})
	require.ErrorIs(t, err, cms.ErrNotFound)

	attached, err := s.FieldGroupsFor(ctx, "pt")
	require.NoError(t, err)
	assert.Len(t, attached, 1)
	detached, err := s.FieldGroupsFor(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, detached)

	types, err := s.FieldTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, cms.DefaultFieldTypes, types)

	require.NoError(t, s.DeleteFieldGroup(ctx, g.ID))
	require.ErrorIs(t, s.DeleteFieldGroup(ctx, g.ID), cms.ErrNotFound)
}
