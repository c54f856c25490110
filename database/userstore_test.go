package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"invserver/database"
	"invserver/database/databasetest"
	"invserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, store database.UserStore, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "A", Email: email, PasswordHash: "hash"}
	require.NoError(t, store.Create(context.Background(), user))
	require.NotZero(t, user.ID)
	return user
}

func TestGormUserStore_CreateAndFind(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()

	user := createUser(t, store, "a@x.com")

	byEmail, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)
	assert.Empty(t, byID.Tokens)

	_, err = store.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = store.FindByID(ctx, user.ID+1)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGormUserStore_DuplicateEmail(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	createUser(t, store, "a@x.com")

	err := store.Create(context.Background(), &models.User{Name: "B", Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, database.ErrDuplicateKey)
}

func TestGormUserStore_CreateWithSession(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()

	failed := &models.User{Name: "A", Email: "a@x.com", PasswordHash: "hash"}
	err := store.CreateWithSession(ctx, failed, func(u *models.User) (*models.SessionToken, error) {
		require.NotZero(t, u.ID)
		return nil, errors.New("sign failed")
	})
	assert.EqualError(t, err, "sign failed")
	_, err = store.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, database.ErrNotFound, "user must be rolled back")

	// トークンの挿入に失敗した場合もユーザーは残らない
	other := createUser(t, store, "b@x.com")
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: other.ID, Token: "taken"}))
	err = store.CreateWithSession(ctx, &models.User{Name: "A", Email: "a@x.com", PasswordHash: "hash"},
		func(u *models.User) (*models.SessionToken, error) {
			return &models.SessionToken{UserID: u.ID, Token: "taken"}, nil
		})
	assert.ErrorIs(t, err, database.ErrDuplicateKey)
	_, err = store.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, database.ErrNotFound)

	user := &models.User{Name: "A", Email: "a@x.com", PasswordHash: "hash"}
	require.NoError(t, store.CreateWithSession(ctx, user, func(u *models.User) (*models.SessionToken, error) {
		return &models.SessionToken{UserID: u.ID, Token: "first"}, nil
	}))
	loaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.HasToken("first"))
}

func TestGormUserStore_Tokens(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()
	user := createUser(t, store, "a@x.com")
	other := createUser(t, store, "b@x.com")

	for _, tok := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: tok}))
	}
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: other.ID, Token: "o1"}))

	loaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Tokens, 3)
	assert.Equal(t, "t1", loaded.Tokens[0].Token)
	assert.True(t, loaded.HasToken("t2"))

	require.NoError(t, store.RemoveToken(ctx, user.ID, "t2"))
	require.NoError(t, store.RemoveToken(ctx, user.ID, "does-not-exist"))
	// 他人のトークンは消せない
	require.NoError(t, store.RemoveToken(ctx, user.ID, "o1"))

	loaded, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Tokens, 2)
	assert.False(t, loaded.HasToken("t2"))

	require.NoError(t, store.ClearTokens(ctx, user.ID))
	loaded, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Tokens)

	otherLoaded, err := store.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, otherLoaded.HasToken("o1"))
}

func TestGormUserStore_Save(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()
	user := createUser(t, store, "a@x.com")
	createUser(t, store, "b@x.com")
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: "t1"}))

	user.Name = "Alice"
	user.PasswordHash = "new-hash"
	user.Tokens = nil
	require.NoError(t, store.Save(ctx, user))

	loaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Name)
	assert.Equal(t, "new-hash", loaded.PasswordHash)
	assert.True(t, loaded.HasToken("t1"), "Save must not touch tokens")

	loaded.Email = "b@x.com"
	assert.ErrorIs(t, store.Save(ctx, loaded), database.ErrDuplicateKey)

	ghost := &models.User{ID: 999, Name: "ghost", Email: "ghost@x.com", PasswordHash: "h"}
	assert.ErrorIs(t, store.Save(ctx, ghost), database.ErrNotFound)
}

func TestGormUserStore_Delete(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()
	user := createUser(t, store, "a@x.com")
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: "t1"}))

	require.NoError(t, store.Delete(ctx, user.ID))

	_, err := store.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, user.ID), database.ErrNotFound)

	// 同じトークン文字列を別ユーザーで再利用できる＝行が物理削除されている
	other := createUser(t, store, "b@x.com")
	assert.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: other.ID, Token: "t1"}))
}

func TestGormUserStore_PruneExpiredTokens(t *testing.T) {
	store := database.NewGormUserStore(databasetest.Open(t))
	ctx := context.Background()
	user := createUser(t, store, "a@x.com")

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: "expired", ExpiresAt: &past}))
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: "valid", ExpiresAt: &future}))
	require.NoError(t, store.AddToken(ctx, &models.SessionToken{UserID: user.ID, Token: "forever"}))

	deleted, err := store.PruneExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	loaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.HasToken("expired"))
	assert.True(t, loaded.HasToken("valid"))
	assert.True(t, loaded.HasToken("forever"))
}
