package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lostandfound/internal/models"
)

type ResetTokenRepository interface {
	// Issue invalidates previously issued unused tokens for the identifier and
	// inserts the new one in a single transaction (single live token per
	// identifier).
	Issue(identifier, token string, expiresAt time.Time) (*models.ResetToken, error)

	GetByToken(token string) (*models.ResetToken, error)

	// ConsumeAndRotate marks the token used and rotates the user's credential
	// in one transaction. Returns nil when the token lost the race (already
	// used or expired by the time of the guarded update); the caller
	// re-classifies via GetByToken.
	ConsumeAndRotate(token, passwordHash string) (*models.ResetToken, error)
}

type resetTokenRepository struct {
	DB *sql.DB
}

func NewResetTokenRepository(db *sql.DB) ResetTokenRepository {
	return &resetTokenRepository{DB: db}
}

func (r *resetTokenRepository) Issue(identifier, token string, expiresAt time.Time) (*models.ResetToken, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("password_reset issue begin: %w", err)
	}
	defer tx.Rollback()

	const invalidate = `
		UPDATE password_resets
		SET expires_at = NOW()
		WHERE identifier = $1 AND used_at IS NULL AND expires_at > NOW()
	`
	if _, err := tx.Exec(invalidate, identifier); err != nil {
		return nil, fmt.Errorf("password_reset invalidate pending: %w", err)
	}

	const insert = `
		INSERT INTO password_resets (identifier, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	rt := &models.ResetToken{Identifier: identifier, Token: token, ExpiresAt: expiresAt}
	if err := tx.QueryRow(insert, identifier, token, expiresAt).Scan(&rt.ID, &rt.CreatedAt); err != nil {
		return nil, fmt.Errorf("password_reset insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("password_reset issue commit: %w", err)
	}
	return rt, nil
}

func (r *resetTokenRepository) GetByToken(token string) (*models.ResetToken, error) {
	const q = `
		SELECT id, identifier, token, expires_at, used_at, created_at
		FROM password_resets
		WHERE token = $1
	`
	rt := &models.ResetToken{}
	var usedAt sql.NullTime
	if err := r.DB.QueryRow(q, token).Scan(&rt.ID, &rt.Identifier, &rt.Token, &rt.ExpiresAt, &usedAt, &rt.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("password_reset by token: %w", err)
	}
	if usedAt.Valid {
		rt.UsedAt = &usedAt.Time
	}
	return rt, nil
}

func (r *resetTokenRepository) ConsumeAndRotate(token, passwordHash string) (*models.ResetToken, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("password_reset consume begin: %w", err)
	}
	defer tx.Rollback()

	const consume = `
		UPDATE password_resets
		SET used_at = NOW()
		WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id, identifier, expires_at, used_at, created_at
	`
	rt := &models.ResetToken{Token: token}
	var usedAt sql.NullTime
	if err := tx.QueryRow(consume, token).Scan(&rt.ID, &rt.Identifier, &rt.ExpiresAt, &usedAt, &rt.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // lost the race or never valid
		}
		return nil, fmt.Errorf("password_reset consume: %w", err)
	}
	if usedAt.Valid {
		rt.UsedAt = &usedAt.Time
	}

	const rotate = `
		UPDATE users
		SET password_hash = $2, must_change_password = FALSE
		WHERE email = $1
	`
	res, err := tx.Exec(rotate, rt.Identifier, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("password_reset rotate credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("password_reset rotate credential: no user for %q", rt.Identifier)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("password_reset consume commit: %w", err)
	}
	return rt, nil
}
