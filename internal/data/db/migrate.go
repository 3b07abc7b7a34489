package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Character{},
		&types.Dialog{},
		&types.Message{},
		&types.DialogJob{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
