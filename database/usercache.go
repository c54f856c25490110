package database

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"invserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	userCachePrefix = "user:"
	userGenSuffix   = ":gen"
)

// fillUserScript は世代番号が読み出し時から変わっていない場合だけキャッシュを書き込む。
// KEYS[1]=キャッシュ, KEYS[2]=世代番号, ARGV[1]=読み出し時の世代, ARGV[2]=値, ARGV[3]=TTL(ms)
var fillUserScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// cachedUser はキャッシュ用の表現。models.User の JSON はハッシュとトークンを隠すため別に定義する
type cachedUser struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash"`
	Tokens       []cachedST `json:"tokens"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type cachedST struct {
	ID        uint       `json:"id"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CachedUserStore は FindByID の結果をRedisにキャッシュする UserStore です。
// 書き込み系の操作は下位ストアに委譲した後、ユーザーごとの世代番号を進めてキャッシュを削除する。
// DB読み出し中に世代が進んだ場合、その読み出し結果はキャッシュに書き込まない。
type CachedUserStore struct {
	UserStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedUserStore(next UserStore, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedUserStore {
	return &CachedUserStore{UserStore: next, rdb: rdb, ttl: ttl, logger: logger}
}

func userCacheKey(id uint) string {
	return userCachePrefix + strconv.FormatUint(uint64(id), 10)
}

func userGenKey(id uint) string {
	return userCacheKey(id) + userGenSuffix
}

func (s *CachedUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	key := userCacheKey(id)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cu cachedUser
		decodeErr := json.Unmarshal(raw, &cu)
		if decodeErr == nil {
			return cu.toModel(), nil
		}
		s.logger.Warn("Failed to decode cached user", zap.String("key", key), zap.Error(decodeErr))
	case errors.Is(err, redis.Nil):
	default:
		// Redis障害時はDBにフォールバック
		s.logger.Warn("Failed to read user cache", zap.String("key", key), zap.Error(err))
	}

	// 世代番号はDBを読む前に取得する
	gen, err := s.rdb.Get(ctx, userGenKey(id)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = "0"
	case err != nil:
		s.logger.Warn("Failed to read user cache generation", zap.Uint("userID", id), zap.Error(err))
		return s.UserStore.FindByID(ctx, id)
	}

	user, err := s.UserStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, user, gen)
	return user, nil
}

func (s *CachedUserStore) fill(ctx context.Context, user *models.User, gen string) {
	raw, err := json.Marshal(fromModel(user))
	if err != nil {
		return
	}
	ttl := s.ttl.Milliseconds()
	if s.ttl > 0 && ttl == 0 {
		ttl = 1
	}

	keys := []string{userCacheKey(user.ID), userGenKey(user.ID)}
	stored, err := fillUserScript.Run(ctx, s.rdb, keys, gen, raw, ttl).Int()
	if err != nil {
		s.logger.Warn("Failed to write user cache", zap.Uint("userID", user.ID), zap.Error(err))
		return
	}
	if stored == 0 {
		s.logger.Debug("Skipped stale user cache fill", zap.Uint("userID", user.ID))
	}
}

func (s *CachedUserStore) Save(ctx context.Context, user *models.User) error {
	if err := s.UserStore.Save(ctx, user); err != nil {
		return err
	}
	return s.invalidate(ctx, user.ID)
}

func (s *CachedUserStore) Delete(ctx context.Context, id uint) error {
	if err := s.UserStore.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedUserStore) AddToken(ctx context.Context, token *models.SessionToken) error {
	if err := s.UserStore.AddToken(ctx, token); err != nil {
		return err
	}
	return s.invalidate(ctx, token.UserID)
}

func (s *CachedUserStore) RemoveToken(ctx context.Context, userID uint, token string) error {
	if err := s.UserStore.RemoveToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedUserStore) ClearTokens(ctx context.Context, userID uint) error {
	if err := s.UserStore.ClearTokens(ctx, userID); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// invalidate は世代番号を進めてからキャッシュを削除します。
// 失敗すると失効済みトークンがTTLの間有効なままになるため、エラーとして返す
func (s *CachedUserStore) invalidate(ctx context.Context, id uint) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userGenKey(id))
		pipe.Del(ctx, userCacheKey(id))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to invalidate user cache", zap.Uint("userID", id), zap.Error(err))
		return err
	}
	return nil
}

func fromModel(u *models.User) cachedUser {
	cu := cachedUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Tokens:       make([]cachedST, 0, len(u.Tokens)),
	}
	for _, t := range u.Tokens {
		cu.Tokens = append(cu.Tokens, cachedST{ID: t.ID, Token: t.Token, ExpiresAt: t.ExpiresAt})
	}
	return cu
}

func (cu cachedUser) toModel() *models.User {
	u := &models.User{
		ID:           cu.ID,
		Name:         cu.Name,
		Email:        cu.Email,
		PasswordHash: cu.PasswordHash,
		CreatedAt:    cu.CreatedAt,
		UpdatedAt:    cu.UpdatedAt,
		Tokens:       make([]models.SessionToken, 0, len(cu.Tokens)),
	}
	for _, t := range cu.Tokens {
		st := models.SessionToken{UserID: cu.ID, Token: t.Token, ExpiresAt: t.ExpiresAt}
		st.ID = t.ID
		u.Tokens = append(u.Tokens, st)
	}
	return u
}
