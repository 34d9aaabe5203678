package actorctx

import (
	"context"

	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
)

// ActorContextKey is the request context key for the authenticated actor.
type ActorContextKey struct{}

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the authenticated actor from context, if set.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(domain.Actor)
	if !ok || actor.ID == 0 {
		return domain.Actor{}, false
	}
	return actor, true
}
