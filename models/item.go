package models

import (
	"encoding/json"
	"time"
)

// Item モデルの定義
// Image はサムネイル化済みのPNGバイト列。JSONには含めない
type Item struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	Price     float64   `gorm:"not null" json:"price"`
	Sale      *float64  `json:"sale,omitempty"`
	OwnerID   uint      `gorm:"index;not null" json:"owner"`
	Image     []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON は画像の有無だけを hasImage として出力します。
func (i Item) MarshalJSON() ([]byte, error) {
	type item Item
	return json.Marshal(struct {
		item
		HasImage bool `json:"hasImage"`
	}{
		item:     item(i),
		HasImage: len(i.Image) > 0,
	})
}
