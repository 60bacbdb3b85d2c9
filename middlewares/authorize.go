package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/logger"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// ErrUserNotFound is returned by a RoleResolver when the session refers to a
// user that does not exist anymore.
var ErrUserNotFound = errors.New("middlewares: user not found")

// Default redirect targets of Authorize.
const (
	DefaultLoginPath     = "/auth/login"
	DefaultForbiddenPath = "/admin/insufficient-permissions"
)

type (
	userIDKey struct{}
	roleKey   struct{}
)

// RoleResolver returns the role of a signed-in user.
type RoleResolver interface {
	UserRole(ctx context.Context, userID string) (role.Role, error)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(ctx context.Context, userID string) (role.Role, error)

func (f RoleResolverFunc) UserRole(ctx context.Context, userID string) (role.Role, error) {
	return f(ctx, userID)
}

// AuthorizeConfig configures the authorization middleware.
type AuthorizeConfig struct {
	LoginPath     string
	ForbiddenPath string
}

// AuthorizeOption configures AuthorizeConfig.
type AuthorizeOption func(*AuthorizeConfig)

// WithLoginPath sets where anonymous and unknown users are sent.
func WithLoginPath(path string) AuthorizeOption {
	return func(cfg *AuthorizeConfig) {
		cfg.LoginPath = path
	}
}

// WithForbiddenPath sets where users with an insufficient role are sent.
func WithForbiddenPath(path string) AuthorizeOption {
	return func(cfg *AuthorizeConfig) {
		cfg.ForbiddenPath = path
	}
}

// Authorize returns middleware that admits only users whose role satisfies
// required in the order subscriber < editor < admin.
//
//   - no user in the session: 302 to the login path
//   - the user does not exist: user_id is removed from the session and the
//     updated cookie is sent with the 302 to the login path
//   - insufficient role: 302 to the forbidden path
//
// Route middleware runs before any loader of the route.
func Authorize(required role.Role, resolver RoleResolver, opts ...AuthorizeOption) internal.Middleware {
	cfg := &AuthorizeConfig{
		LoginPath:     DefaultLoginPath,
		ForbiddenPath: DefaultForbiddenPath,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			uid := c.UserID()
			if uid == "" {
				return c.Redirect(http.StatusFound, cfg.LoginPath)
			}

			r, err := resolver.UserRole(c.Context(), uid)
			switch {
			case errors.Is(err, ErrUserNotFound):
				c.LogWarn("session refers to unknown user", "user_id", uid)
				c.Session().Delete(internal.SessionUserKey)
				return c.Redirect(http.StatusFound, cfg.LoginPath)
			case err != nil:
				return err
			}

			c.Set(userIDKey{}, uid)
			c.Set(roleKey{}, r)

			if !r.Satisfies(required) {
				return c.Redirect(http.StatusFound, cfg.ForbiddenPath)
			}
			return next(c)
		}
	}
}

// CurrentRole returns the role resolved by Authorize, or an empty role.
func CurrentRole(c internal.Context) role.Role {
	if v, ok := c.Get(roleKey{}).(role.Role); ok {
		return v
	}
	return ""
}

// UserIDExtractor returns a ContextExtractor that adds "user_id" to log
// entries of requests that passed Authorize.
func UserIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(userIDKey{}).(string); ok && v != "" {
			return slog.String("user_id", v), true
		}
		return slog.Attr{}, false
	}
}
