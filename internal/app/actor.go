package app

import (
	"context"
	"strings"
)

// Actor carries the authenticated caller identity for a request.
type Actor struct {
	UserID string
	Email  string
}

// WithActor attaches a normalized actor to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	actor = normalizeActor(actor)
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor when present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	raw := ctx.Value(actorContextKey{})
	actor, ok := raw.(Actor)
	if !ok {
		return Actor{}, false
	}
	actor = normalizeActor(actor)
	if actor.UserID == "" {
		return Actor{}, false
	}
	return actor, true
}

// actorContextKey stores context keys for actor values.
type actorContextKey struct{}

// normalizeActor trims and canonicalizes actor fields.
func normalizeActor(actor Actor) Actor {
	actor.UserID = strings.TrimSpace(actor.UserID)
	actor.Email = strings.ToLower(strings.TrimSpace(actor.Email))
	return actor
}
