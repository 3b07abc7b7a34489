package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	"github.com/yungbote/dialogforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type CharacterRepo = dialog.CharacterRepo
type DialogRepo = dialog.DialogRepo
type MessageRepo = dialog.MessageRepo

type DialogJobRepo = jobs.DialogJobRepo

func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	return dialog.NewCharacterRepo(db, baseLog)
}
func NewDialogRepo(db *gorm.DB, baseLog *logger.Logger) DialogRepo {
	return dialog.NewDialogRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return dialog.NewMessageRepo(db, baseLog)
}

func NewDialogJobRepo(db *gorm.DB, baseLog *logger.Logger) DialogJobRepo {
	return jobs.NewDialogJobRepo(db, baseLog)
}
