package auth

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDriver     Role = "driver"
	RoleGoodsOwner Role = "goods_owner"
)

// User is the domain representation of an account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
// Password and role changes go through their own operations.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}
