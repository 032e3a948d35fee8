package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lostandfound/internal/models"
)

type VerificationCodeRepository interface {
	// Issue invalidates any pending code for (identifier, purpose) and inserts
	// the new one in a single transaction, so at most one unconsumed,
	// unexpired code survives a race between two issuers.
	Issue(code *models.VerificationCode) error

	// GetLatest returns the newest record for the pair regardless of state,
	// or nil when none exists. State checks (consumed, attempts, expiry)
	// belong to the service.
	GetLatest(identifier, purpose string) (*models.VerificationCode, error)

	// IncrementAttempts adds one failed attempt and returns the new counter.
	IncrementAttempts(id int64) (int, error)

	// ExpireNow force-expires a code (attempt limit reached).
	ExpireNow(id int64) error

	// Consume marks the code consumed; returns false when a concurrent verify
	// already consumed it or it expired in between.
	Consume(id int64) (bool, error)

	CountRecentSends(identifier, purpose string, since time.Time) (int, error)
}

type verificationCodeRepository struct {
	DB *sql.DB
}

func NewVerificationCodeRepository(db *sql.DB) VerificationCodeRepository {
	return &verificationCodeRepository{DB: db}
}

func (r *verificationCodeRepository) Issue(code *models.VerificationCode) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("verification_code issue begin: %w", err)
	}
	defer tx.Rollback()

	const invalidate = `
		UPDATE verification_codes
		SET expires_at = NOW()
		WHERE identifier = $1 AND purpose = $2 AND consumed = FALSE AND expires_at > NOW()
	`
	if _, err := tx.Exec(invalidate, code.Identifier, code.Purpose); err != nil {
		return fmt.Errorf("verification_code invalidate pending: %w", err)
	}

	const insert = `
		INSERT INTO verification_codes (identifier, purpose, code_hash, sent_at, expires_at, consumed, attempts)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0)
		RETURNING id
	`
	if err := tx.QueryRow(insert,
		code.Identifier, code.Purpose, code.CodeHash, code.SentAt, code.ExpiresAt,
	).Scan(&code.ID); err != nil {
		return fmt.Errorf("verification_code insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("verification_code issue commit: %w", err)
	}
	return nil
}

func (r *verificationCodeRepository) GetLatest(identifier, purpose string) (*models.VerificationCode, error) {
	const q = `
		SELECT id, identifier, purpose, code_hash, sent_at, expires_at, consumed, attempts
		FROM verification_codes
		WHERE identifier = $1 AND purpose = $2
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	row := r.DB.QueryRow(q, identifier, purpose)
	var v models.VerificationCode
	if err := row.Scan(&v.ID, &v.Identifier, &v.Purpose, &v.CodeHash, &v.SentAt, &v.ExpiresAt, &v.Consumed, &v.Attempts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verification_code latest: %w", err)
	}
	return &v, nil
}

func (r *verificationCodeRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("verification_code increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationCodeRepository) ExpireNow(id int64) error {
	_, err := r.DB.Exec(`UPDATE verification_codes SET expires_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *verificationCodeRepository) Consume(id int64) (bool, error) {
	// Guarded update: rows-affected decides who wins under concurrent verifies.
	const q = `
		UPDATE verification_codes
		SET consumed = TRUE
		WHERE id = $1 AND consumed = FALSE AND expires_at > NOW()
	`
	res, err := r.DB.Exec(q, id)
	if err != nil {
		return false, fmt.Errorf("verification_code consume: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *verificationCodeRepository) CountRecentSends(identifier, purpose string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE identifier = $1 AND purpose = $2 AND sent_at >= $3
	`
	var c int
	if err := r.DB.QueryRow(q, identifier, purpose, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("verification_code count recent: %w", err)
	}
	return c, nil
}
