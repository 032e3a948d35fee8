package models

import "time"

type User struct {
	ID           int    `json:"id"`
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"` // не отдаём наружу

	// temporary password state: true means the current credential was issued
	// by us and must be replaced before normal use
	MustChangePassword bool `json:"must_change_password"`

	PhoneVerified bool       `json:"phone_verified"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
