package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dialogforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
)

func TestMessageRepoAppendAssignsSeq(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewMessageRepo(db, testutil.Logger(t))

	d := testutil.SeedDialog(t, db, uuid.New(), 4)
	for i, text := range []string{"one", "two", "three"} {
		m, err := repo.Append(dbc, &types.Message{DialogID: d.ID, CharacterID: d.AEICharacterID, TurnNumber: i + 1, Content: text})
		if err != nil {
			t.Fatalf("Append(%s): %v", text, err)
		}
		if m.Seq != int64(i+1) {
			t.Fatalf("Append(%s): want seq=%d got=%d", text, i+1, m.Seq)
		}
	}

	list, err := repo.ListByDialog(dbc, d.ID)
	if err != nil {
		t.Fatalf("ListByDialog: %v", err)
	}
	if len(list) != 3 || list[0].Content != "one" || list[2].Content != "three" {
		t.Fatalf("ListByDialog: unexpected order %+v", list)
	}
	n, err := repo.CountByDialog(dbc, d.ID)
	if err != nil || n != 3 {
		t.Fatalf("CountByDialog: n=%d err=%v", n, err)
	}
	last, err := repo.LastByDialog(dbc, d.ID)
	if err != nil || last == nil || last.Content != "three" {
		t.Fatalf("LastByDialog: %+v err=%v", last, err)
	}
}

func TestMessageRepoIncrementRating(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewMessageRepo(db, testutil.Logger(t))

	d := testutil.SeedDialog(t, db, uuid.New(), 2)
	m := testutil.SeedMessage(t, db, d.ID, d.AEICharacterID, 1, "hello")

	for _, up := range []bool{true, true, false} {
		if err := repo.IncrementRating(dbc, m.ID, up); err != nil {
			t.Fatalf("IncrementRating(%v): %v", up, err)
		}
	}
	got, err := repo.GetByID(dbc, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ThumbsUp != 2 || got.ThumbsDown != 1 {
		t.Fatalf("ratings: up=%d down=%d", got.ThumbsUp, got.ThumbsDown)
	}
	if got.Content != "hello" {
		t.Fatalf("content changed: %q", got.Content)
	}

	if err := repo.IncrementRating(dbc, uuid.New(), true); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing message: want ErrRecordNotFound got %v", err)
	}
}
