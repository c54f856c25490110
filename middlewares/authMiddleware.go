package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"invserver/auth"
	"invserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey  = "user"
	tokenKey = "token"

	bearerPrefix = "Bearer "
)

// Authenticator はトークンからユーザーを解決します。auth.Service が実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, string, error)
}

// トークン検証とユーザー解決を行うミドルウェア
// 失敗の理由はクライアントに返さず、すべて同じ 401 にする
func AuthMiddleware(authenticator Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err == nil {
			var user *models.User
			user, token, err = authenticator.Authenticate(c.Request.Context(), token)
			if err == nil {
				c.Set(userKey, user)
				c.Set(tokenKey, token)
				c.Next()
				return
			}
		}

		if errors.Is(err, auth.ErrInternalStore) {
			logger.Error("認証中にストアエラーが発生", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		logger.Warn("認証失敗", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please authenticate"})
	}
}

// BearerToken は Authorization ヘッダーから Bearer トークンを取り出します。
func BearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", auth.ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

// CurrentUser は AuthMiddleware がセットしたユーザーを返します。
func CurrentUser(c *gin.Context) *models.User {
	user, _ := c.MustGet(userKey).(*models.User)
	return user
}

// CurrentToken は今回のリクエストで認証に使われたトークンを返します。
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
