package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invserver/auth"
	"invserver/database"   //PostgreSQLとRedisの初期化、ストア
	"invserver/handlers"   //HTTPリクエストの処理
	"invserver/migrations" //テーブルの作成
	"invserver/thumbnail"  //画像のサムネイル化
	"invserver/utils"      //ロガーの初期化とCronジョブ(期限切れトークンの定期削除)

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	config, err := database.LoadConfig(configPath())
	if err != nil {
		// ロガー初期化前なので標準エラーに出して終了
		os.Stderr.WriteString("設定の読み込みに失敗しました: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := utils.InitLogger(config.Env) // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	errs := make(chan error, 2)

	go func() {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		errs <- err
	}()

	go func() {
		var err error
		rdb, err = database.InitRedis(config, logger)
		errs <- err
	}()

	// 2つの初期化が完了するのを待つ
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			logger.Fatal("データベースの初期化に失敗しました", zap.Error(err))
		}
	}

	if err := migrations.AutoMigrateDB(db, logger); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	var users database.UserStore = database.NewGormUserStore(db)
	if rdb != nil {
		users = database.NewCachedUserStore(users, rdb, time.Duration(config.UserCacheTTL), logger)
		defer rdb.Close()
	}

	codec, err := auth.NewTokenCodec([]byte(config.SecretKey), time.Duration(config.TokenTTL))
	if err != nil {
		logger.Fatal("トークン署名の初期化に失敗しました", zap.Error(err))
	}
	authService := auth.NewService(users, auth.NewHasher(config.BcryptCost, config.HashWorkers), codec, logger)

	// クーロンスケジューラのセットアップと呼び出し
	scheduler, err := utils.CronCleaner(users, logger)
	if err != nil {
		logger.Fatal("Cronジョブの登録に失敗しました", zap.Error(err))
	}
	defer scheduler.Stop()

	if config.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Dependencies{
		Auth:         authService,
		Items:        database.NewGormItemStore(db),
		Resizer:      thumbnail.ImagingResizer{},
		DB:           db,
		Logger:       logger,
		AllowOrigins: config.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func configPath() string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return path
	}
	return "config.json"
}
