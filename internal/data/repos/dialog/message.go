package dialog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type MessageRepo interface {
	// Append assigns the next seq for the dialog and inserts the message.
	Append(dbc dbctx.Context, msg *types.Message) (*types.Message, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error)
	ListByDialog(dbc dbctx.Context, dialogID uuid.UUID) ([]*types.Message, error)
	CountByDialog(dbc dbctx.Context, dialogID uuid.UUID) (int64, error)
	LastByDialog(dbc dbctx.Context, dialogID uuid.UUID) (*types.Message, error)
	IncrementRating(dbc dbctx.Context, id uuid.UUID, up bool) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil || msg.DialogID == uuid.Nil {
		return nil, gorm.ErrInvalidData
	}
	transaction := dbc.DB(r.db)
	var maxSeq int64
	if err := transaction.
		Model(&types.Message{}).
		Where("dialog_id = ?", msg.DialogID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return nil, err
	}
	msg.Seq = maxSeq + 1
	if err := transaction.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Message
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *messageRepo) ListByDialog(dbc dbctx.Context, dialogID uuid.UUID) ([]*types.Message, error) {
	var out []*types.Message
	if dialogID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("dialog_id = ?", dialogID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) CountByDialog(dbc dbctx.Context, dialogID uuid.UUID) (int64, error) {
	var n int64
	if dialogID == uuid.Nil {
		return 0, nil
	}
	err := dbc.DB(r.db).Model(&types.Message{}).Where("dialog_id = ?", dialogID).Count(&n).Error
	return n, err
}

func (r *messageRepo) LastByDialog(dbc dbctx.Context, dialogID uuid.UUID) (*types.Message, error) {
	if dialogID == uuid.Nil {
		return nil, nil
	}
	var out types.Message
	if err := dbc.DB(r.db).
		Where("dialog_id = ?", dialogID).
		Order("seq DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *messageRepo) IncrementRating(dbc dbctx.Context, id uuid.UUID, up bool) error {
	column := "thumbs_down"
	if up {
		column = "thumbs_up"
	}
	res := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       gorm.Expr(column + " + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
