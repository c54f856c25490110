package auth

import "errors"

var (
	// 登録・プロフィール更新時の入力エラー
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("password must be at least 8 characters and at most 72 bytes")
	ErrDuplicateEmail  = errors.New("email is already registered")

	// ログイン失敗。メールアドレスの有無は区別しない
	ErrInvalidCredentials = errors.New("unable to login")

	// 認証失敗。境界ではすべて同じ 401 に畳み込まれる
	ErrInvalidToken   = errors.New("invalid token")
	ErrUserNotFound   = errors.New("user not found")
	ErrSessionRevoked = errors.New("session revoked")
	ErrMissingToken   = errors.New("missing bearer token")

	ErrInternalStore = errors.New("credential store error")
	ErrInternal      = errors.New("internal error")
)

// IsUnauthenticated は err が未認証として扱うべきエラーかを返します。
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionRevoked) ||
		errors.Is(err, ErrMissingToken)
}

// IsValidation は err が入力内容の誤りによるものかを返します。
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrInvalidPassword) ||
		errors.Is(err, ErrDuplicateEmail)
}
