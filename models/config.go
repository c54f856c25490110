package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Config 構造体はサーバー全体の設定情報を保持します。
// config.json から読み込んだ後、環境変数で上書きされます。
type Config struct {
	Env  string `json:"env"`
	Port string `json:"port"`

	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// 署名鍵は環境変数 SECRET_KEY からのみ読み込む
	SecretKey    string   `json:"-"`
	TokenTTL     Duration `json:"token_ttl"`
	BcryptCost   int      `json:"bcrypt_cost"`
	HashWorkers  int      `json:"hash_workers"`
	UserCacheTTL Duration `json:"user_cache_ttl"`

	AllowOrigins []string `json:"allow_origins"`
}

// DefaultConfig は開発用のデフォルト値を返します。
func DefaultConfig() Config {
	return Config{
		Env:          "production",
		Port:         "8080",
		DBHost:       "localhost",
		DBPort:       "5432",
		DBUser:       "postgres",
		DBName:       "invserver",
		DBSSLMode:    "disable",
		TokenTTL:     Duration(7 * 24 * time.Hour),
		BcryptCost:   10,
		HashWorkers:  4,
		UserCacheTTL: Duration(time.Minute),
	}
}

// DSN は PostgreSQL の接続文字列を組み立てます。
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBPassword, c.DBSSLMode)
}

// Validate は起動に必要な設定が揃っているかを確認します。
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is not set")
	}
	if c.Port == "" {
		return errors.New("port is empty")
	}
	if c.HashWorkers < 1 {
		return fmt.Errorf("hash_workers must be positive, got %d", c.HashWorkers)
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("token_ttl must not be negative, got %s", time.Duration(c.TokenTTL))
	}
	return nil
}

// Duration は "72h" のような文字列とナノ秒の整数の両方を受け付ける time.Duration です。
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}
