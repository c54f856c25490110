package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invserver/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// IssueFunc は採番済みのユーザーに対して最初のセッショントークンを生成します。
type IssueFunc func(user *models.User) (*models.SessionToken, error)

// UserStore はユーザーとセッショントークンの永続化を担います。
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	CreateWithSession(ctx context.Context, user *models.User, issue IssueFunc) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error

	AddToken(ctx context.Context, token *models.SessionToken) error
	RemoveToken(ctx context.Context, userID uint, token string) error
	ClearTokens(ctx context.Context, userID uint) error
	PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// GormUserStore は gorm を使った UserStore の実装です。
type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Omit("Tokens").Create(user).Error; err != nil {
		return translate(err, "create user")
	}
	return nil
}

// CreateWithSession はユーザーと最初のセッショントークンを1つのトランザクションで作成します。
// どちらかが失敗した場合はユーザーも作成されない。
func (s *GormUserStore) CreateWithSession(ctx context.Context, user *models.User, issue IssueFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tokens").Create(user).Error; err != nil {
			return translate(err, "create user")
		}
		token, err := issue(user)
		if err != nil {
			return err
		}
		if err := tx.Create(token).Error; err != nil {
			return translate(err, "add session token")
		}
		return nil
	})
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "find user by email")
	}
	return &user, nil
}

// FindByID はユーザーを有効なトークン一覧と一緒に取得します。
func (s *GormUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Tokens", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&user, id).Error
	if err != nil {
		return nil, translate(err, "find user by id")
	}
	return &user, nil
}

// Save はプロフィール項目だけを更新します。トークンは AddToken などで個別に更新する。
func (s *GormUserStore) Save(ctx context.Context, user *models.User) error {
	result := s.db.WithContext(ctx).
		Model(user).
		Select("Name", "Email", "PasswordHash", "UpdatedAt").
		Updates(user)
	if result.Error != nil {
		return translate(result.Error, "save user")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormUserStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&models.SessionToken{}).Error; err != nil {
			return translate(err, "delete user tokens")
		}
		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return translate(result.Error, "delete user")
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormUserStore) AddToken(ctx context.Context, token *models.SessionToken) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return translate(err, "add session token")
	}
	return nil
}

// RemoveToken は該当トークンを削除します。存在しない場合も nil を返す。
func (s *GormUserStore) RemoveToken(ctx context.Context, userID uint, token string) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.SessionToken{}).Error
	if err != nil {
		return translate(err, "remove session token")
	}
	return nil
}

func (s *GormUserStore) ClearTokens(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("user_id = ?", userID).
		Delete(&models.SessionToken{}).Error
	if err != nil {
		return translate(err, "clear session tokens")
	}
	return nil
}

// PruneExpiredTokens は有効期限切れのトークンを削除し、削除件数を返します。
func (s *GormUserStore) PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&models.SessionToken{})
	if result.Error != nil {
		return 0, translate(result.Error, "prune expired tokens")
	}
	return result.RowsAffected, nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
