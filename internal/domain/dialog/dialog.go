package dialog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Dialog struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	Topic           string         `gorm:"column:topic;type:text;not null" json:"topic"`
	TotalTurns      int            `gorm:"column:total_turns;not null;default:0" json:"total_turns"`
	Status          Status         `gorm:"column:status;not null;default:draft;index" json:"status"`
	AEICharacterID  uuid.UUID      `gorm:"type:uuid;column:aei_character_id;not null;index" json:"aei_character_id"`
	UserCharacterID uuid.UUID      `gorm:"type:uuid;column:user_character_id;not null;index" json:"user_character_id"`
	EmotionalState  datatypes.JSON `gorm:"column:emotional_state;type:jsonb" json:"emotional_state"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Dialog) TableName() string { return "dialog" }

func (d *Dialog) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	return nil
}

// CharacterIDFor returns the character speaking as t in this dialog.
func (d *Dialog) CharacterIDFor(t CharacterType) uuid.UUID {
	if t == CharacterAEI {
		return d.AEICharacterID
	}
	return d.UserCharacterID
}
