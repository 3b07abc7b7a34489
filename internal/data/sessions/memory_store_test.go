package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
)

func TestMemoryStoreRoundTripAndExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10 * time.Minute)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	sess := &ChatSession{
		ID:             NewID(),
		OwnerUserID:    uuid.New(),
		Topic:          "tide pools",
		Turns:          []Turn{{Speaker: "User", Content: "hi"}},
		EmotionalState: emotion.NeutralVector(),
	}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Topic != "tide pools" || len(got.Turns) != 1 || got.Turns[0].Content != "hi" {
		t.Fatalf("unexpected session: %+v", got)
	}
	got.Turns = append(got.Turns, Turn{Content: "mutated"})
	again, _ := s.Get(ctx, sess.ID)
	if len(again.Turns) != 1 {
		t.Fatalf("store must not share values, got %d turns", len(again.Turns))
	}

	now = now.Add(10 * time.Minute)
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	sess := &ChatSession{ID: NewID()}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
}
