package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/data/repos/testutil"
)

func TestRateMessage(t *testing.T) {
	e := newEnv(t)
	svc := NewMessageService(testutil.Logger(t), e.dialogs, e.messages)
	owner := uuid.New()
	d := testutil.SeedDialog(t, e.db, owner, 4)
	msg := testutil.SeedMessage(t, e.db, d.ID, d.AEICharacterID, 1, "hello")

	if _, err := svc.RateForRequestUser(asUser(owner), msg.ID, true); err != nil {
		t.Fatalf("rate up: %v", err)
	}
	got, err := svc.RateForRequestUser(asUser(owner), msg.ID, false)
	if err != nil {
		t.Fatalf("rate down: %v", err)
	}
	if got.ThumbsUp != 1 || got.ThumbsDown != 1 {
		t.Fatalf("unexpected counters up=%d down=%d", got.ThumbsUp, got.ThumbsDown)
	}
	if got.Content != "hello" {
		t.Fatalf("rating must not touch content, got %q", got.Content)
	}

	if _, err := svc.RateForRequestUser(asUser(uuid.New()), msg.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.RateForRequestUser(asUser(owner), uuid.New(), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing message: expected ErrNotFound, got %v", err)
	}
}
