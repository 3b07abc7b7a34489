package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
)

func SeedCharacter(tb testing.TB, tx *gorm.DB, ownerUserID uuid.UUID, name string, kind types.CharacterType) *types.Character {
	tb.Helper()
	c := &types.Character{
		OwnerUserID:  ownerUserID,
		Name:         name,
		Type:         kind,
		SystemPrompt: "You are " + name + ".",
	}
	if err := tx.Create(c).Error; err != nil {
		tb.Fatalf("seed character: %v", err)
	}
	return c
}

// SeedDialog creates an AEI and a User character and a dialog between them.
func SeedDialog(tb testing.TB, tx *gorm.DB, ownerUserID uuid.UUID, totalTurns int) *types.Dialog {
	tb.Helper()
	aei := SeedCharacter(tb, tx, ownerUserID, "Ada", types.CharacterAEI)
	user := SeedCharacter(tb, tx, ownerUserID, "Bob", types.CharacterUser)
	d := &types.Dialog{
		OwnerUserID:     ownerUserID,
		Title:           "test dialog",
		Topic:           "tide pools",
		TotalTurns:      totalTurns,
		Status:          types.DialogInProgress,
		AEICharacterID:  aei.ID,
		UserCharacterID: user.ID,
		EmotionalState:  emotion.NeutralVector().JSON(),
	}
	if err := tx.Create(d).Error; err != nil {
		tb.Fatalf("seed dialog: %v", err)
	}
	return d
}

func SeedJob(tb testing.TB, tx *gorm.DB, job *types.DialogJob) *types.DialogJob {
	tb.Helper()
	if job.NextCharacterType == "" {
		job.NextCharacterType = types.CharacterAEI
	}
	if err := tx.Create(job).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return job
}

func SeedMessage(tb testing.TB, tx *gorm.DB, dialogID, characterID uuid.UUID, seq int64, content string) *types.Message {
	tb.Helper()
	m := &types.Message{
		DialogID:    dialogID,
		CharacterID: characterID,
		Seq:         seq,
		TurnNumber:  int(seq),
		Content:     content,
	}
	if err := tx.Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func PtrTime(t time.Time) *time.Time { return &t }
