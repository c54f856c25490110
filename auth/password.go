package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher は bcrypt によるパスワードのハッシュ化と照合を行います。
// bcrypt はCPUを占有するため、同時実行数を workers 個に制限する。
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte // 存在しないユーザーとの照合用
}

const dummyPassword = "invserver-unknown-user"

// NewHasher は指定したコストと同時実行数で Hasher を生成します。
func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if workers < 1 {
		workers = 1
	}
	// 固定文字列かつ有効なコストなので失敗しない
	dummy, _ := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	return &Hasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(workers)),
		dummy: dummy,
	}
}

// Hash は平文パスワードのハッシュを返します。
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: acquire hash worker: %w", ErrInternal, err)
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", ErrInternal, err)
	}
	return string(hash), nil
}

// Verify は平文とハッシュが一致するかを返します。
// 不一致はエラーではなく false を返す。
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("%w: acquire hash worker: %w", ErrInternal, err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: verify password: %v", ErrInternal, err)
}

// VerifyUnknown は存在しないユーザーに対して Verify と同じ処理を行います。
// 照合結果は捨て、失敗した場合のエラーだけを返す。
func (h *Hasher) VerifyUnknown(ctx context.Context, plaintext string) error {
	_, err := h.Verify(ctx, plaintext, string(h.dummy))
	return err
}
