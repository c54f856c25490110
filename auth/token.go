package auth

import (
	"errors"
	"fmt"
	"time"

	"invserver/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCodec はユーザーIDを含むJWTの署名と検証を行います。
// 発行済みトークンの状態は持たない。失効はストアからの削除で表現する。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec は署名鍵と有効期間から TokenCodec を生成します。
// ttl が 0 の場合、トークンは失効しない。
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("token ttl must not be negative: %s", ttl)
	}
	return &TokenCodec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Sign はユーザーIDからトークンを生成します。ttl 未設定なら expiresAt は nil。
func (c *TokenCodec) Sign(userID uint) (string, *time.Time, error) {
	now := c.now()
	claims := &models.MyClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	var expiresAt *time.Time
	if c.ttl > 0 {
		exp := now.Add(c.ttl).UTC()
		expiresAt = &exp
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("%w: sign token: %v", ErrInternal, err)
	}
	return tokenString, expiresAt, nil
}

// Verify はトークンを検証し、含まれるユーザーIDを返します。
func (c *TokenCodec) Verify(tokenString string) (uint, error) {
	claims := &models.MyClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
