package dialog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type DialogRepo interface {
	Create(dbc dbctx.Context, dialogs []*types.Dialog) ([]*types.Dialog, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dialog, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type dialogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDialogRepo(db *gorm.DB, baseLog *logger.Logger) DialogRepo {
	return &dialogRepo{db: db, log: baseLog.With("repo", "DialogRepo")}
}

func (r *dialogRepo) Create(dbc dbctx.Context, dialogs []*types.Dialog) ([]*types.Dialog, error) {
	if len(dialogs) == 0 {
		return []*types.Dialog{}, nil
	}
	if err := dbc.DB(r.db).Create(&dialogs).Error; err != nil {
		return nil, err
	}
	return dialogs, nil
}

// GetByID returns nil when the dialog does not exist or was soft-deleted.
func (r *dialogRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dialog, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Dialog
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *dialogRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.Dialog{}).
		Where("id = ?", id).
		Updates(updates).Error
}
