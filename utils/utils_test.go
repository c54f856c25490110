package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePruner struct {
	now     time.Time
	deleted int64
	err     error
}

func (f *fakePruner) PruneExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	f.now = now
	return f.deleted, f.err
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
}

func TestPruneExpiredTokens(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pruner := &fakePruner{deleted: 3}

	PruneExpiredTokens(context.Background(), pruner, zap.New(core))

	assert.WithinDuration(t, time.Now(), pruner.now, time.Minute)
	assert.Equal(t, time.UTC, pruner.now.Location())
	done := logs.FilterField(zap.Int64("tokens_deleted", 3))
	assert.Equal(t, 1, done.Len())
}

func TestPruneExpiredTokens_Error(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	pruner := &fakePruner{err: errors.New("db down")}

	PruneExpiredTokens(context.Background(), pruner, zap.New(core))

	assert.Equal(t, 1, logs.Len())
}

func TestCronCleaner(t *testing.T) {
	c, err := CronCleaner(&fakePruner{}, zap.NewNop())
	require.NoError(t, err)
	defer c.Stop()

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Next.After(time.Now()))
}

func TestInitLogger(t *testing.T) {
	dev, err := InitLogger("development")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := InitLogger("production")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
}
