package models

import "time"

type ResetToken struct {
	ID         int        `json:"id"`
	Identifier string     `json:"identifier"`
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
