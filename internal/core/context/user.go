// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Roles known to the service.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID   string
	TenantID string
	Email    string
	Role     string
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}
