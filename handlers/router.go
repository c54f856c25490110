package handlers

import (
	"time"

	"invserver/auth"
	"invserver/database"
	"invserver/middlewares"
	"invserver/thumbnail"
	"invserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies はルーターが必要とするコンポーネントです。
type Dependencies struct {
	Auth         *auth.Service
	Items        database.ItemStore
	Resizer      thumbnail.Resizer
	DB           *gorm.DB // ヘルスチェック用。nil なら /healthz は常に ok
	Logger       *zap.Logger
	AllowOrigins []string
}

// NewRouter は各HTTPリクエストのルーティングを設定した gin.Engine を返します。
func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	// CORS（Cross-Origin Resource Sharing）ポリシーを設定
	if len(deps.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	authRequired := middlewares.AuthMiddleware(deps.Auth, logger)

	router.GET("/healthz", Healthz(deps.DB))

	// ユーザー
	router.POST("/users", RegisterUser(deps.Auth, logger))
	router.POST("/users/login", LoginUser(deps.Auth, logger))
	router.POST("/users/logout", authRequired, LogoutUser(deps.Auth, logger))
	router.POST("/users/logoutAll", authRequired, LogoutAllSessions(deps.Auth, logger))
	router.GET("/users/me", authRequired, GetMe())
	router.PATCH("/users/me", authRequired, UpdateMe(deps.Auth, logger))
	router.DELETE("/users/me", authRequired, DeleteMe(deps.Auth, deps.Items, logger))

	// アイテム
	router.POST("/items", authRequired, CreateItem(deps.Items, logger))
	router.GET("/items", authRequired, ListItems(deps.Items, logger))
	router.GET("/items/:id", authRequired, GetItem(deps.Items, logger))
	router.PATCH("/items/:id", authRequired, UpdateItem(deps.Items, logger))
	router.DELETE("/items/:id", authRequired, DeleteItem(deps.Items, logger))

	// 画像の取得だけは認証不要
	router.GET("/items/:id/picture", GetItemPicture(deps.Items, logger))
	router.POST("/items/:id/picture", authRequired, UploadItemPicture(deps.Items, deps.Resizer, logger))
	router.DELETE("/items/:id/picture", authRequired, DeleteItemPicture(deps.Items, logger))

	return router
}
