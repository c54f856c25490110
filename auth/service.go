package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"invserver/database"
	"invserver/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	minPasswordLength = 8  // 文字数
	maxPasswordLength = 72 // バイト数。bcrypt が扱える上限
)

// Service はユーザー登録、ログイン、ログアウト、トークン認証をまとめます。
// リクエストごとの状態は持たない。
type Service struct {
	store    database.UserStore
	hasher   *Hasher
	codec    *TokenCodec
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(store database.UserStore, hasher *Hasher, codec *TokenCodec, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		codec:    codec,
		validate: validator.New(),
		logger:   logger,
	}
}

// ProfileUpdate はプロフィール更新の内容です。nil の項目は変更しない。
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
}

// Register はユーザーを作成し、最初のセッショントークンを発行します。
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, string, error) {
	user := &models.User{}
	if err := s.applyProfile(user, ProfileUpdate{Name: &name, Email: &email, Password: &password}); err != nil {
		return nil, "", err
	}
	if err := s.hashPassword(ctx, user); err != nil {
		return nil, "", err
	}

	// ユーザーと最初のトークンは同じトランザクションで保存する
	var session *models.SessionToken
	err := s.store.CreateWithSession(ctx, user, func(u *models.User) (*models.SessionToken, error) {
		token, expiresAt, err := s.codec.Sign(u.ID)
		if err != nil {
			return nil, err
		}
		session = &models.SessionToken{UserID: u.ID, Token: token, ExpiresAt: expiresAt}
		return session, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInternal):
		return nil, "", err
	case errors.Is(err, database.ErrDuplicateKey):
		return nil, "", ErrDuplicateEmail
	default:
		return nil, "", fmt.Errorf("%w: %v", ErrInternalStore, err)
	}

	user.Tokens = append(user.Tokens, *session)
	s.logger.Info("User registered", zap.Uint("userID", user.ID))
	return user, session.Token, nil
}

// Login はメールアドレスとパスワードを照合し、新しいセッショントークンを発行します。
// メールアドレスが存在しない場合もパスワード不一致の場合も ErrInvalidCredentials を返す。
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.store.FindByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		// 存在しないユーザーでも同じコストで照合する
		if err := s.hasher.VerifyUnknown(ctx, strings.TrimSpace(password)); err != nil {
			return nil, "", err
		}
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInternalStore, err)
	}

	// 登録時と同じく前後の空白は除去して照合する
	ok, err := s.hasher.Verify(ctx, strings.TrimSpace(password), user.PasswordHash)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout は指定したトークンだけを失効させます。登録されていないトークンは無視する。
func (s *Service) Logout(ctx context.Context, user *models.User, token string) error {
	if err := s.store.RemoveToken(ctx, user.ID, token); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalStore, err)
	}
	user.RemoveToken(token)
	return nil
}

// LogoutAll はユーザーの全セッションを失効させます。
func (s *Service) LogoutAll(ctx context.Context, user *models.User) error {
	if err := s.store.ClearTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalStore, err)
	}
	user.Tokens = nil
	return nil
}

// Authenticate はトークンを検証し、持ち主のユーザーと一致したトークンを返します。
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, string, error) {
	userID, err := s.codec.Verify(token)
	if err != nil {
		return nil, "", err
	}

	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInternalStore, err)
	}

	if !user.HasToken(token) {
		return nil, "", ErrSessionRevoked
	}
	return user, token, nil
}

// UpdateProfile は名前・メールアドレス・パスワードを更新します。
// パスワードが変わった場合は保存前に再ハッシュする。
func (s *Service) UpdateProfile(ctx context.Context, user *models.User, update ProfileUpdate) (*models.User, error) {
	updated := *user
	if err := s.applyProfile(&updated, update); err != nil {
		return nil, err
	}
	if err := s.hashPassword(ctx, &updated); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, &updated); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, ErrDuplicateEmail
		}
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalStore, err)
	}
	*user = updated
	return user, nil
}

// DeleteAccount はユーザーと全セッションを削除します。
// 所有アイテムの削除は呼び出し側の責任。
func (s *Service) DeleteAccount(ctx context.Context, user *models.User) error {
	if err := s.store.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalStore, err)
	}
	s.logger.Info("User deleted", zap.Uint("userID", user.ID))
	return nil
}

func (s *Service) applyProfile(user *models.User, update ProfileUpdate) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return ErrInvalidName
		}
		user.Name = name
	}
	if update.Email != nil {
		email := models.NormalizeEmail(*update.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return ErrInvalidEmail
		}
		user.Email = email
	}
	if update.Password != nil {
		password := strings.TrimSpace(*update.Password)
		if utf8.RuneCountInString(password) < minPasswordLength || len(password) > maxPasswordLength {
			return ErrInvalidPassword
		}
		user.Password = password
	}
	return nil
}

// hashPassword は平文パスワードが設定されていればハッシュ化し、平文を消去します。
func (s *Service) hashPassword(ctx context.Context, user *models.User) error {
	if !user.PasswordChanged() {
		return nil
	}
	hash, err := s.hasher.Hash(ctx, user.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}

func (s *Service) issueToken(ctx context.Context, user *models.User) (string, error) {
	token, expiresAt, err := s.codec.Sign(user.ID)
	if err != nil {
		return "", err
	}

	session := models.SessionToken{UserID: user.ID, Token: token, ExpiresAt: expiresAt}
	if err := s.store.AddToken(ctx, &session); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternalStore, err)
	}
	user.Tokens = append(user.Tokens, session)
	return token, nil
}
