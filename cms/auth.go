package cms

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate returns the user with the given credentials.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, store Store, email, password string) (User, error) {
	u, err := store.UserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Resolver adapts a Store to the role lookup of middlewares.Authorize.
func Resolver(store Store) middlewares.RoleResolver {
	return middlewares.RoleResolverFunc(func(ctx context.Context, userID string) (role.Role, error) {
		u, err := store.User(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return "", middlewares.ErrUserNotFound
		}
		if err != nil {
			return "", err
		}
		return u.Role, nil
	})
}

// EnsureAdmin creates an admin account with email and password unless a user
// with that email exists. It reports whether a user was created.
func EnsureAdmin(ctx context.Context, store Store, name, email, password string) (bool, error) {
	email = NormalizeEmail(email)
	if _, err := store.UserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if name == "" {
		name = "Admin"
	}
	if _, err := store.CreateUser(ctx, User{Name: name, Email: email, PasswordHash: hash, Role: role.Admin}); err != nil {
		return false, err
	}
	return true, nil
}
