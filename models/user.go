package models

import (
	"crypto/subtle"
	"strings"
	"time"
)

// User モデルの定義
// PasswordHash と Tokens は JSON に含めない
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Password     string         `gorm:"-" json:"-"` // ハッシュ化前の平文。保存前に必ず空になる
	Tokens       []SessionToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// NormalizeEmail はメールアドレスの前後の空白を除去し小文字に揃えます。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordChanged はハッシュ化待ちの平文パスワードがあるかを返します。
func (u *User) PasswordChanged() bool {
	return u.Password != ""
}

// HasToken はトークンが有効なセッションとして登録されているかを返します。
// 比較は定数時間で行い、一致した場合も最後まで走査する。
func (u *User) HasToken(token string) bool {
	found := 0
	for _, t := range u.Tokens {
		found |= subtle.ConstantTimeCompare([]byte(t.Token), []byte(token))
	}
	return found == 1
}

// RemoveToken はメモリ上のトークン一覧から該当トークンを取り除きます。
func (u *User) RemoveToken(token string) {
	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
}
