package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionToken モデルの定義
// ログイン1回につき1行。ログアウトで行ごと削除される
type SessionToken struct {
	gorm.Model
	UserID    uint       `gorm:"index;not null"`
	Token     string     `gorm:"uniqueIndex;not null"`
	ExpiresAt *time.Time `gorm:"index"` // nil の場合は有効期限なし
}
