package models

// RegisterRequest はユーザー登録リクエストを表します。
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest はクライアントからのログインリクエストを表します。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateItemRequest はアイテム作成リクエストを表します。
type CreateItemRequest struct {
	Name  string   `json:"name" binding:"required"`
	Count *int     `json:"count" binding:"omitempty,min=0"`
	Price *float64 `json:"price" binding:"required,min=0"`
	Sale  *float64 `json:"sale" binding:"omitempty,min=0"`
}

// AuthResponse は登録・ログイン成功時のレスポンスです。
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
