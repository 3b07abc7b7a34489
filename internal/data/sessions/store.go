package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
)

var ErrNotFound = errors.New("chat session not found")

type Turn struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSession is a manual conversation between a person and one AEI character. It is
// never written to the database and expires with its store entry.
type ChatSession struct {
	ID             string         `json:"id"`
	OwnerUserID    uuid.UUID      `json:"owner_user_id"`
	AEICharacterID uuid.UUID      `json:"aei_character_id"`
	PartnerName    string         `json:"partner_name"`
	Topic          string         `json:"topic"`
	Turns          []Turn         `json:"turns"`
	EmotionalState emotion.Vector `json:"emotional_state"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// History returns the turn texts, oldest first.
func (s *ChatSession) History() []string {
	out := make([]string, 0, len(s.Turns))
	for _, t := range s.Turns {
		out = append(out, t.Content)
	}
	return out
}

// Store keeps sessions for a fixed TTL that is refreshed on every Put.
type Store interface {
	Get(ctx context.Context, id string) (*ChatSession, error)
	Put(ctx context.Context, s *ChatSession) error
	Delete(ctx context.Context, id string) error
}

func NewID() string {
	return uuid.NewString()
}
