package tuition

import "context"

type contextKey string

const actorKey contextKey = "tuition.actor"

// WithActor returns a context carrying the acting back-office user. Every
// mutating operation resolves it before touching the store; the user id is
// stamped on everything the operation writes.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorFromContext returns the acting user, or "" when none is set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// requireActor resolves the acting user or fails with ErrUnauthorized.
// Authorization is checked before any store access.
func (e *Engine) requireActor(ctx context.Context) (string, error) {
	actor := ActorFromContext(ctx)
	if actor == "" {
		return "", ErrUnauthorized
	}
	return actor, nil
}
