package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenPruner は期限切れセッショントークンを削除できるストアです。
type TokenPruner interface {
	PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// CronCleaner は定期クリーンアップのジョブを登録して開始します。
// 呼び出し側は終了時に Stop() を呼ぶ。
func CronCleaner(store TokenPruner, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	// 期限切れのセッショントークンを削除するジョブ（毎時）
	if _, err := c.AddFunc("@hourly", func() {
		PruneExpiredTokens(context.Background(), store, logger)
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

// PruneExpiredTokens は期限切れトークンの削除を1回実行します。
func PruneExpiredTokens(ctx context.Context, store TokenPruner, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	logger.Info("期限切れトークンを削除する処理を開始")
	deleted, err := store.PruneExpiredTokens(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("期限切れトークンの削除に失敗しました", zap.Error(err))
		return
	}
	logger.Info("期限切れトークンの削除完了", zap.Int64("tokens_deleted", deleted))
}
