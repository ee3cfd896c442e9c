package auth

import (
	"context"

	pkgerrors "swapcourses-backend/pkg/errors"
)

// UserContext is the authenticated identity attached to every request.
// The core trusts this identity and never authenticates on its own.
type UserContext struct {
	UserID string
	Email  string
}

type contextKey string

const userContextKey contextKey = "user_context"

// WithUser attaches the authenticated user to the context.
func WithUser(ctx context.Context, user UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext extracts the authenticated user from the context.
func GetUserFromContext(ctx context.Context) (UserContext, error) {
	user, ok := ctx.Value(userContextKey).(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, pkgerrors.NewUnauthorizedError("no authenticated user in context")
	}
	return user, nil
}
