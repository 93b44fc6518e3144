package types

import (
	"context"
	"testing"
)

func TestWithActor_GetActor(t *testing.T) {
	t.Run("round-trip stores and retrieves actor", func(t *testing.T) {
		actor := Actor{
			ID:    "user-123",
			Email: "alice@example.com",
		}
		ctx := WithActor(context.Background(), actor)
		got, ok := GetActor(ctx)
		if !ok {
			t.Fatal("expected ok to be true, got false")
		}
		if got.ID != actor.ID {
			t.Errorf("ID: got %q, want %q", got.ID, actor.ID)
		}
		if got.Email != actor.Email {
			t.Errorf("Email: got %q, want %q", got.Email, actor.Email)
		}
	})

	t.Run("returns false when no actor in context", func(t *testing.T) {
		_, ok := GetActor(context.Background())
		if ok {
			t.Error("expected ok to be false for empty context")
		}
	})

	t.Run("returns zero-value actor when missing", func(t *testing.T) {
		actor, ok := GetActor(context.Background())
		if ok {
			t.Error("expected ok to be false")
		}
		if actor.ID != "" {
			t.Errorf("expected empty ID, got %q", actor.ID)
		}
		if actor.Email != "" {
			t.Errorf("expected empty Email, got %q", actor.Email)
		}
	})
}

func TestWithRequestID_GetRequestID(t *testing.T) {
	t.Run("round-trip stores and retrieves request ID", func(t *testing.T) {
		id := "req-abc-123-def-456"
		ctx := WithRequestID(context.Background(), id)
		got := GetRequestID(ctx)
		if got != id {
			t.Errorf("got %q, want %q", got, id)
		}
	})

	t.Run("returns empty string when no request ID in context", func(t *testing.T) {
		got := GetRequestID(context.Background())
		if got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("handles empty request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "")
		got := GetRequestID(ctx)
		if got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestContextKeys_ArePrivate(t *testing.T) {
	// Verify that using a plain string key does not collide with the typed contextKey.
	// This ensures the unexported contextKey type provides collision protection.
	ctx := context.WithValue(context.Background(), "actor", "not-an-actor")
	_, ok := GetActor(ctx)
	if ok {
		t.Error("expected typed context key to prevent collision with plain string key")
	}

	ctx = context.WithValue(context.Background(), "request_id", "should-not-match")
	got := GetRequestID(ctx)
	if got != "" {
		t.Errorf("expected empty string due to key type mismatch, got %q", got)
	}
}

func TestContextValues_DoNotInterfere(t *testing.T) {
	actor := Actor{
		ID:    "user-1",
		Email: "bob@example.com",
	}
	reqID := "req-xyz"

	ctx := context.Background()
	ctx = WithActor(ctx, actor)
	ctx = WithRequestID(ctx, reqID)

	gotActor, ok := GetActor(ctx)
	if !ok {
		t.Fatal("expected actor to be present")
	}
	if gotActor.ID != "user-1" {
		t.Errorf("actor ID: got %q, want %q", gotActor.ID, "user-1")
	}

	gotReqID := GetRequestID(ctx)
	if gotReqID != reqID {
		t.Errorf("request ID: got %q, want %q", gotReqID, reqID)
	}
}
