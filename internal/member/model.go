package member

import "time"

type Member struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100" example:"Aiko Tanaka"`
	Email    string `json:"email" binding:"required,email" example:"aiko@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"s3cret-pass"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Member       Member `json:"member"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	Member      Member `json:"member"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=member coach admin"`
}
