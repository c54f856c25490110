package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// LoadConfig は config.json を読み込み、環境変数で上書きした設定を返します。
// ファイルが存在しない場合はデフォルト値と環境変数だけを使う。
func LoadConfig(filename string) (models.Config, error) {
	config := models.DefaultConfig()

	configFile, err := os.Open(filename)
	switch {
	case err == nil:
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return config, err
	}

	if err := applyEnv(&config); err != nil {
		return config, err
	}
	return config, config.Validate()
}

func applyEnv(config *models.Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	setDuration := func(key string, dst *models.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = models.Duration(d)
		return nil
	}

	setString("APP_ENV", &config.Env)
	setString("PORT", &config.Port)
	setString("DB_HOST", &config.DBHost)
	setString("DB_PORT", &config.DBPort)
	setString("DB_USER", &config.DBUser)
	setString("DB_PASSWORD", &config.DBPassword)
	setString("DB_NAME", &config.DBName)
	setString("DB_SSLMODE", &config.DBSSLMode)
	setString("REDIS_ADDR", &config.RedisAddr)
	setString("REDIS_PASSWORD", &config.RedisPassword)
	setString("SECRET_KEY", &config.SecretKey)

	if v, ok := os.LookupEnv("ALLOW_ORIGINS"); ok {
		config.AllowOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowOrigins = append(config.AllowOrigins, origin)
			}
		}
	}

	for key, dst := range map[string]*int{
		"REDIS_DB":     &config.RedisDB,
		"BCRYPT_COST":  &config.BcryptCost,
		"HASH_WORKERS": &config.HashWorkers,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*models.Duration{
		"TOKEN_TTL":      &config.TokenTTL,
		"USER_CACHE_TTL": &config.UserCacheTTL,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// InitPostgreSQL はリトライ付きでPostgreSQLに接続します。
func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 5 * time.Second

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(config.DSN()), gormConfig)
		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.String("host", config.DBHost), zap.String("db", config.DBName))
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// InitRedis は設定にアドレスがある場合だけRedisクライアントを生成します。
// アドレス未設定なら nil, nil を返し、ユーザーキャッシュは無効になる。
func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	if config.RedisAddr == "" {
		logger.Info("REDIS_ADDR is not set, user cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}

// Ping はコネクションプールの疎通確認を行います。
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
