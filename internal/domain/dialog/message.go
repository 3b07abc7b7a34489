package dialog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is one generated turn. Only the rating counters change after insert.
type Message struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DialogID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_dialog_message_seq,priority:1" json:"dialog_id"`
	CharacterID uuid.UUID `gorm:"type:uuid;not null;index" json:"character_id"`
	Seq         int64     `gorm:"column:seq;not null;uniqueIndex:idx_dialog_message_seq,priority:2" json:"seq"`
	TurnNumber  int       `gorm:"column:turn_number;not null;index" json:"turn_number"`
	Content     string    `gorm:"column:content;type:text;not null" json:"content"`

	// EmotionSnapshot is the speaker's mood before this turn's analysis was blended in.
	EmotionSnapshot datatypes.JSON `gorm:"column:emotion_snapshot;type:jsonb" json:"emotion_snapshot,omitempty"`
	RequestPayload  datatypes.JSON `gorm:"column:request_payload;type:jsonb" json:"request_payload,omitempty"`
	InputTokens     int            `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens    int            `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`

	ThumbsUp   int `gorm:"column:thumbs_up;not null;default:0" json:"thumbs_up"`
	ThumbsDown int `gorm:"column:thumbs_down;not null;default:0" json:"thumbs_down"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "dialog_message" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
