package cms

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/trellis/pkg/role"
)

var (
	ErrNotFound           = errors.New("cms: record not found")
	ErrDuplicateEmail     = errors.New("cms: a user with this email already exists")
	ErrDuplicateSlug      = errors.New("cms: slug already taken")
	ErrInvalidCredentials = errors.New("cms: invalid email or password")
	ErrUnknownFieldType   = errors.New("cms: unknown field type")
)

// FieldKind identifies how a field value is edited and rendered.
type FieldKind string

// Field kinds. The kind doubles as the field type ID.
const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDate     FieldKind = "date"
	FieldBoolean  FieldKind = "boolean"
	FieldMarkdown FieldKind = "markdown"
	FieldImage    FieldKind = "image"
)

// FieldType is a field kind with its display name.
type FieldType struct {
	ID   FieldKind `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
}

// DefaultFieldTypes are the field types every store provides.
var DefaultFieldTypes = []FieldType{
	{ID: FieldText, Name: "Text"},
	{ID: FieldNumber, Name: "Number"},
	{ID: FieldDate, Name: "Date"},
	{ID: FieldBoolean, Name: "Boolean"},
	{ID: FieldMarkdown, Name: "Markdown"},
	{ID: FieldImage, Name: "Image"},
}

// ValidFieldKind reports whether k is one of DefaultFieldTypes.
func ValidFieldKind(k FieldKind) bool {
	for _, ft := range DefaultFieldTypes {
		if ft.ID == k {
			return true
		}
	}
	return false
}

// User is an admin account.
type User struct {
	CreatedAt    time.Time `json:"created_at"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         role.Role `json:"role"`
}

// PostType groups posts, e.g. "post" or "page".
type PostType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Post is a piece of content. Fields maps field IDs to stored values.
type Post struct {
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Fields     map[string]string `json:"fields"`
	ID         string            `json:"id"`
	PostTypeID string            `json:"post_type_id"`
	Title      string            `json:"title"`
	Slug       string            `json:"slug"`
}

// Field is one input of a field group.
type Field struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
	Type FieldKind `json:"type"`
}

// FieldGroup is a set of fields attached to post types.
type FieldGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Fields      []Field  `json:"fields"`
	PostTypeIDs []string `json:"post_type_ids"`
}

// Store persists CMS content. Lookups of missing records return ErrNotFound.
type Store interface {
	Users(ctx context.Context) ([]User, error)
	User(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	// CreateUser assigns the ID. Returns ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, u User) (User, error)
	// UpdateUser keeps the stored hash when u.PasswordHash is empty.
	UpdateUser(ctx context.Context, u User) error

	PostTypes(ctx context.Context) ([]PostType, error)
	PostType(ctx context.Context, slug string) (PostType, error)
	CreatePostType(ctx context.Context, pt PostType) (PostType, error)

	Posts(ctx context.Context, postTypeID string) ([]Post, error)
	Post(ctx context.Context, id string) (Post, error)
	// SavePost creates the post when p.ID is empty. Field values not in
	// p.Fields are removed.
	SavePost(ctx context.Context, p Post) (Post, error)

	FieldTypes(ctx context.Context) ([]FieldType, error)
	FieldGroups(ctx context.Context) ([]FieldGroup, error)
	// FieldGroupsFor returns the groups attached to a post type.
	FieldGroupsFor(ctx context.Context, postTypeID string) ([]FieldGroup, error)
	FieldGroup(ctx context.Context, id string) (FieldGroup, error)
	// SaveFieldGroup creates the group when g.ID is empty and assigns IDs to
	// new fields. Fields missing from g.Fields are removed.
	SaveFieldGroup(ctx context.Context, g FieldGroup) (FieldGroup, error)
	DeleteFieldGroup(ctx context.Context, id string) error
}
