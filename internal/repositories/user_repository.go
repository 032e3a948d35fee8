package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lostandfound/internal/models"
)

type UserRepository interface {
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)

	// SetCredential rotates the stored hash and sets the forced-change flag
	// in the same statement. The only two writers of the flag are the
	// temporary password issue (true) and a completed change (false).
	SetCredential(userID int, passwordHash string, mustChange bool) error

	MarkPhoneVerified(userID int) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, nickname, email, phone, password_hash, must_change_password, phone_verified, verified_at, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var verifiedAt sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Nickname, &u.Email, &u.Phone, &u.PasswordHash,
		&u.MustChangePassword, &u.PhoneVerified, &verifiedAt, &u.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if verifiedAt.Valid {
		u.VerifiedAt = &verifiedAt.Time
	}
	return u, nil
}

func (r *userRepository) GetByID(id int) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRow(q, id))
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.DB.QueryRow(q, email))
}

func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUser(r.DB.QueryRow(q, phone))
}

func (r *userRepository) SetCredential(userID int, passwordHash string, mustChange bool) error {
	const q = `
		UPDATE users
		SET password_hash = $2, must_change_password = $3
		WHERE id = $1
	`
	res, err := r.DB.Exec(q, userID, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set credential: user %d not found", userID)
	}
	return nil
}

func (r *userRepository) MarkPhoneVerified(userID int) error {
	const q = `
		UPDATE users
		SET phone_verified = TRUE, verified_at = $2
		WHERE id = $1
	`
	if _, err := r.DB.Exec(q, userID, time.Now()); err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}
	return nil
}
