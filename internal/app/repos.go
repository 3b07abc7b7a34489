package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/dialogforge-backend/internal/data/repos"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type Repos struct {
	Character repos.CharacterRepo
	Dialog    repos.DialogRepo
	Message   repos.MessageRepo
	DialogJob repos.DialogJobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Character: repos.NewCharacterRepo(db, log),
		Dialog:    repos.NewDialogRepo(db, log),
		Message:   repos.NewMessageRepo(db, log),
		DialogJob: repos.NewDialogJobRepo(db, log),
	}
}
