package dialog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CharacterType string

const (
	// CharacterAEI is the LLM-driven character whose mood is tracked.
	CharacterAEI CharacterType = "AEI"
	// CharacterUser is the scripted human-proxy character.
	CharacterUser CharacterType = "User"
)

func (t CharacterType) Valid() bool {
	return t == CharacterAEI || t == CharacterUser
}

// Opposite returns the other speaker type.
func (t CharacterType) Opposite() CharacterType {
	if t == CharacterAEI {
		return CharacterUser
	}
	return CharacterAEI
}

type Character struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Type         CharacterType  `gorm:"column:type;not null;index" json:"type"`
	SystemPrompt string         `gorm:"column:system_prompt;type:text" json:"system_prompt"`
	Description  string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Character) TableName() string { return "character" }

func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
