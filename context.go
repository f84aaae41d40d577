package charter

import "context"

type contextKey int

const ctxKeyActor contextKey = iota

// WithActor returns a context carrying the subject performing the request.
// Engine writes record it as createdBy and in the audit trail.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actorID)
}

// ActorFromContext returns the actor set by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyActor).(string)
	if !ok {
		return ""
	}
	return v
}
