package dialog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type CharacterRepo interface {
	Create(dbc dbctx.Context, characters []*types.Character) ([]*types.Character, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error)
}

type characterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	return &characterRepo{db: db, log: baseLog.With("repo", "CharacterRepo")}
}

func (r *characterRepo) Create(dbc dbctx.Context, characters []*types.Character) ([]*types.Character, error) {
	if len(characters) == 0 {
		return []*types.Character{}, nil
	}
	if err := dbc.DB(r.db).Create(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

// GetByID returns nil when the character does not exist.
func (r *characterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Character
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}
