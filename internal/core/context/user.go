// Package context carries request-scoped identity and tracing values.
package context

import "context"

// UserContext is the authenticated caller. The posting path stamps its
// UserID on every entry (created_by) and on audit events, so corrections
// are always attributable.
type UserContext struct {
	UserID  string
	Email   string
	Roles   []string
	IsAdmin bool
}

type userContextKey struct{}

// WithUser attaches the caller to ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the caller, or nil outside an authenticated request.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns the caller's ID, or empty. Worker sweeps and startup
// code run without one; entries they write carry an empty created_by.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}
