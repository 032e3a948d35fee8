package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"lostandfound/internal/models"
	"lostandfound/internal/repositories"
	"lostandfound/internal/utils"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
)

// TempPasswordService owns the forced-change state machine:
// Normal -> (Issue) -> ForcedChange -> (Finalize) -> Normal.
// Nothing else flips the flag.
type TempPasswordService interface {
	// Issue generates a random human-typable credential, stores its hash with
	// the forced-change flag set, and returns the plain value exactly once
	// for out-of-band delivery.
	Issue(userID int) (string, error)

	// Finalize replaces the credential and clears the flag. A non-forced
	// change must re-authenticate with the current credential; a forced one
	// must not, since the temporary credential was issued to be replaced.
	Finalize(userID int, currentPassword, newPassword string) error
}

type tempPasswordService struct {
	users  repositories.UserRepository
	auth   AuthService
	audit  AuditService
	length int
}

func NewTempPasswordService(users repositories.UserRepository, auth AuthService, audit AuditService, length int) TempPasswordService {
	return &tempPasswordService{users: users, auth: auth, audit: audit, length: length}
}

func auditIdentifier(u *models.User) string {
	if u.Phone != "" {
		return u.Phone
	}
	return u.Email
}

func (s *tempPasswordService) Issue(userID int) (string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	password, err := utils.NewTempPassword(s.length)
	if err != nil {
		return "", err
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	if err := s.users.SetCredential(userID, hash, true); err != nil {
		s.audit.Record(models.EventResetRequest, auditIdentifier(user), false, "temporary password store failed")
		return "", err
	}

	s.audit.Record(models.EventResetRequest, auditIdentifier(user), true, "temporary password issued")
	log.Printf("[temp-password][issue] user_id=%d", userID)
	return password, nil
}

func (s *tempPasswordService) Finalize(userID int, currentPassword, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	detail := "password changed (forced)"
	if !user.MustChangePassword {
		if err := s.auth.CheckPassword(user.PasswordHash, strings.TrimSpace(currentPassword)); err != nil {
			s.audit.Record(models.EventResetRequest, auditIdentifier(user), false, "password change rejected: wrong current password")
			return ErrWrongPassword
		}
		detail = "password changed"
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetCredential(userID, hash, false); err != nil {
		s.audit.Record(models.EventResetRequest, auditIdentifier(user), false, "password change store failed")
		return err
	}

	s.audit.Record(models.EventResetRequest, auditIdentifier(user), true, detail)
	log.Printf("[temp-password][finalize] user_id=%d forced=%v", userID, user.MustChangePassword)
	return nil
}
