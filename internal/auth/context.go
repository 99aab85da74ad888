package auth

import "context"

type userContextKey struct{}

// ContextWithUser attaches the authenticated identity to the context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated identity from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userContextKey{}).(User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
