package handler

import (
	"context"

	"navidrive/internal/application/session"
)

// contextKey is the type for context keys
type contextKey string

// SessionContextKey is the key used to store the session runtime in context
const SessionContextKey contextKey = "session"

// GetSessionFromContext retrieves the session runtime from request context
func GetSessionFromContext(ctx context.Context) *session.Runtime {
	rt, ok := ctx.Value(SessionContextKey).(*session.Runtime)
	if !ok {
		return nil
	}
	return rt
}

// WithSession returns a copy of ctx carrying rt.
func WithSession(ctx context.Context, rt *session.Runtime) context.Context {
	return context.WithValue(ctx, SessionContextKey, rt)
}
