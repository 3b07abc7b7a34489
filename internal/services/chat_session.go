package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	"github.com/yungbote/dialogforge-backend/internal/data/sessions"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/generation"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type CreateChatSessionInput struct {
	AEICharacterID uuid.UUID `json:"aei_character_id"`
	PartnerName    string    `json:"partner_name"`
	Topic          string    `json:"topic"`
}

// ChatReply is the outcome of one manual chat exchange. AnalysisError is set when the
// reply was produced but the mood could not be updated.
type ChatReply struct {
	Session       *sessions.ChatSession `json:"session"`
	Reply         string                `json:"reply"`
	AnalysisError string                `json:"analysis_error,omitempty"`
}

// ChatSessionService runs manual conversations with an AEI character through the same
// generation and mood blending used by dialog jobs.
type ChatSessionService interface {
	Create(dbc dbctx.Context, in CreateChatSessionInput) (*sessions.ChatSession, error)
	Get(ctx context.Context, id string) (*sessions.ChatSession, error)
	SendMessage(dbc dbctx.Context, id string, text string) (*ChatReply, error)
	Delete(ctx context.Context, id string) error
}

type chatSessionService struct {
	log        *logger.Logger
	store      sessions.Store
	characters dialogrepo.CharacterRepo
	gen        generation.Generator
	now        func() time.Time
}

func NewChatSessionService(
	baseLog *logger.Logger,
	store sessions.Store,
	characters dialogrepo.CharacterRepo,
	gen generation.Generator,
) ChatSessionService {
	return &chatSessionService{
		log:        baseLog.With("service", "ChatSessionService"),
		store:      store,
		characters: characters,
		gen:        gen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatSessionService) Create(dbc dbctx.Context, in CreateChatSessionInput) (*sessions.ChatSession, error) {
	userID, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	in.PartnerName = strings.TrimSpace(in.PartnerName)
	in.Topic = strings.TrimSpace(in.Topic)
	if in.AEICharacterID == uuid.Nil || in.PartnerName == "" || in.Topic == "" {
		return nil, fmt.Errorf("%w: aei_character_id, partner_name and topic are required", ErrInvalidInput)
	}
	c, err := s.ownedCharacter(dbc, userID, in.AEICharacterID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &sessions.ChatSession{
		ID:             sessions.NewID(),
		OwnerUserID:    userID,
		AEICharacterID: c.ID,
		PartnerName:    in.PartnerName,
		Topic:          in.Topic,
		Turns:          []sessions.Turn{},
		EmotionalState: emotion.NeutralVector(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Put(dbc.Ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("Chat session created", "session_id", sess.ID, "character_id", c.ID)
	return sess, nil
}

func (s *chatSessionService) Get(ctx context.Context, id string) (*sessions.ChatSession, error) {
	return s.ownedSession(ctx, id)
}

func (s *chatSessionService) SendMessage(dbc dbctx.Context, id string, text string) (*ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	sess, err := s.ownedSession(dbc.Ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.ownedCharacter(dbc, sess.OwnerUserID, sess.AEICharacterID)
	if err != nil {
		return nil, err
	}

	history := append(sess.History(), text)
	mood := sess.EmotionalState
	res, err := s.gen.GenerateTurn(dbc.Ctx, generation.TurnRequest{
		CharacterPrompt: c.SystemPrompt,
		Topic:           sess.Topic,
		History:         history,
		SpeakingRole:    string(types.CharacterAEI),
		SpeakerName:     c.Name,
		PartnerName:     sess.PartnerName,
		PartnerRole:     string(types.CharacterUser),
		Emotion:         &mood,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	now := s.now()
	sess.Turns = append(sess.Turns,
		sessions.Turn{Speaker: sess.PartnerName, Content: text, CreatedAt: now},
		sessions.Turn{Speaker: c.Name, Content: res.Text, CreatedAt: now},
	)
	out := &ChatReply{Session: sess, Reply: res.Text}

	observed, err := s.gen.AnalyzeEmotion(dbc.Ctx, generation.EmotionRequest{
		History:       sess.History(),
		CharacterName: c.Name,
		Topic:         sess.Topic,
	})
	if err != nil {
		s.log.Warn("Chat emotion analysis failed; keeping previous state", "session_id", sess.ID, "error", err)
		out.AnalysisError = err.Error()
	} else {
		sess.EmotionalState = emotion.Blend(sess.EmotionalState, observed)
	}
	sess.UpdatedAt = now
	if err := s.store.Put(dbc.Ctx, sess); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *chatSessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.ownedSession(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *chatSessionService) ownedSession(ctx context.Context, id string) (*sessions.ChatSession, error) {
	userID, err := requestUser(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

func (s *chatSessionService) ownedCharacter(dbc dbctx.Context, userID, characterID uuid.UUID) (*types.Character, error) {
	c, err := s.characters.GetByID(dbc, characterID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	if c.Type != types.CharacterAEI {
		return nil, fmt.Errorf("%w: character %s is not an AEI character", ErrInvalidInput, c.ID)
	}
	return c, nil
}
