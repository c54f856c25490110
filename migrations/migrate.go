package migrations

import (
	"fmt"

	"invserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// テーブルの作成と更新
func AutoMigrateDB(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&models.User{}, &models.SessionToken{}, &models.Item{}); err != nil {
		return fmt.Errorf("error migrating tables: %w", err)
	}
	logger.Info("users, session_tokens and items tables migrated")
	return nil
}
