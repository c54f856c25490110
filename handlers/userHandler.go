package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"invserver/auth"
	"invserver/database"
	"invserver/middlewares"
	"invserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ユーザー登録ハンドラー
// 登録と同時にセッショントークンを発行する
func RegisterUser(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, token, err := svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			if auth.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.Error("User registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
			return
		}

		c.JSON(http.StatusCreated, models.AuthResponse{User: user, Token: token})
	}
}

// ログインハンドラー
func LoginUser(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, token, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to login"})
				return
			}
			logger.Error("Login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
			return
		}

		c.JSON(http.StatusOK, models.AuthResponse{User: user, Token: token})
	}
}

// 現在のセッションだけをログアウト
func LogoutUser(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)
		if err := svc.Logout(c.Request.Context(), user, middlewares.CurrentToken(c)); err != nil {
			logger.Error("Logout failed", zap.Uint("userID", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
		c.Status(http.StatusOK)
	}
}

// 全セッションをログアウト
func LogoutAllSessions(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)
		if err := svc.LogoutAll(c.Request.Context(), user); err != nil {
			logger.Error("Logout of all sessions failed", zap.Uint("userID", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
		c.Status(http.StatusOK)
	}
}

func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middlewares.CurrentUser(c))
	}
}

// プロフィール更新ハンドラー。更新できるのは name, email, password のみ
func UpdateMe(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	allowed := map[string]bool{"name": true, "email": true, "password": true}

	return func(c *gin.Context) {
		var body map[string]json.RawMessage
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var update auth.ProfileUpdate
		for key, raw := range body {
			if !allowed[key] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid updates"})
				return
			}
			var value string
			if err := json.Unmarshal(raw, &value); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a string"})
				return
			}
			switch key {
			case "name":
				update.Name = &value
			case "email":
				update.Email = &value
			case "password":
				update.Password = &value
			}
		}

		user, err := svc.UpdateProfile(c.Request.Context(), middlewares.CurrentUser(c), update)
		if err != nil {
			if auth.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.Error("Profile update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// アカウント削除ハンドラー。所有アイテムを先に削除してからユーザーを削除する
func DeleteMe(svc *auth.Service, items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)

		deleted, err := items.DeleteByOwner(c.Request.Context(), user.ID)
		if err != nil {
			logger.Error("Failed to delete owned items", zap.Uint("userID", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
			return
		}

		if err := svc.DeleteAccount(c.Request.Context(), user); err != nil {
			logger.Error("Failed to delete user", zap.Uint("userID", user.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
			return
		}

		logger.Info("Account deleted", zap.Uint("userID", user.ID), zap.Int64("items_deleted", deleted))
		c.JSON(http.StatusOK, user)
	}
}
