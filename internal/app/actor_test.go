package app

import (
	"context"
	"testing"
)

// TestActorContextRoundTrip verifies normalization and retrieval from context.
func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: " u-1 ", Email: " Ada@Example.com "})
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("ActorFromContext() expected actor")
	}
	if actor.UserID != "u-1" {
		t.Fatalf("UserID = %q, want u-1", actor.UserID)
	}
	if actor.Email != "ada@example.com" {
		t.Fatalf("Email = %q, want ada@example.com", actor.Email)
	}
}

// TestActorContextEmpty verifies absence semantics.
func TestActorContextEmpty(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("ActorFromContext() expected no actor for empty context")
	}
	empty := WithActor(context.Background(), Actor{UserID: "  "})
	if _, ok := ActorFromContext(empty); ok {
		t.Fatal("ActorFromContext() expected no actor for blank user id")
	}
}
