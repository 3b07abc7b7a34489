package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type MessageService interface {
	// RateForRequestUser adds one thumbs-up or thumbs-down to a message in a dialog the
	// request user owns and returns the updated message.
	RateForRequestUser(dbc dbctx.Context, messageID uuid.UUID, up bool) (*types.Message, error)
}

type messageService struct {
	log      *logger.Logger
	dialogs  dialogrepo.DialogRepo
	messages dialogrepo.MessageRepo
}

func NewMessageService(baseLog *logger.Logger, dialogs dialogrepo.DialogRepo, messages dialogrepo.MessageRepo) MessageService {
	return &messageService{
		log:      baseLog.With("service", "MessageService"),
		dialogs:  dialogs,
		messages: messages,
	}
}

func (s *messageService) RateForRequestUser(dbc dbctx.Context, messageID uuid.UUID, up bool) (*types.Message, error) {
	userID, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(dbc, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	d, err := s.dialogs.GetByID(dbc, msg.DialogID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	if d.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	if err := s.messages.IncrementRating(dbc, msg.ID, up); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	updated, err := s.messages.GetByID(dbc, msg.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}
