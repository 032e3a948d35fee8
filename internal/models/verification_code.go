package models

import "time"

// Purposes a verification code can be issued for. The two flows never share
// a code namespace even when the identifier strings collide.
const (
	PurposePasswordReset = "password_reset"
	PurposePhoneVerify   = "phone_verify"
)

// VerificationCode: отдельная запись на каждую отправку кода.
// We keep only the bcrypt hash of the code (CodeHash), TTL and attempt counter.
type VerificationCode struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Purpose    string    `json:"purpose"`
	CodeHash   string    `json:"-"`
	SentAt     time.Time `json:"sent_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
	Attempts   int       `json:"attempts"`
}
