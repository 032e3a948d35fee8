package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lostandfound/internal/models"
	"lostandfound/internal/repositories"
	"lostandfound/internal/utils"
)

var (
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")
)

// PasswordResetService drives the email (link) recovery flow.
type PasswordResetService interface {
	// RequestReset never reveals whether the address exists; the unknown case
	// is recorded for audit only.
	RequestReset(email string) error

	// Validate classifies the token without consuming it, so a client can
	// render the form before finalizing.
	Validate(token string) (string, error)

	// Consume marks the token used and rotates the credential atomically.
	Consume(token, newPassword string) error
}

type passwordResetService struct {
	users  repositories.UserRepository
	tokens repositories.ResetTokenRepository
	emails EmailService
	auth   AuthService
	audit  AuditService

	tokenTTL time.Duration
}

func NewPasswordResetService(
	users repositories.UserRepository,
	tokens repositories.ResetTokenRepository,
	emails EmailService,
	auth AuthService,
	audit AuditService,
	tokenTTL time.Duration,
) PasswordResetService {
	return &passwordResetService{
		users:    users,
		tokens:   tokens,
		emails:   emails,
		auth:     auth,
		audit:    audit,
		tokenTTL: tokenTTL,
	}
}

func (s *passwordResetService) RequestReset(email string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		s.audit.Record(models.EventResetLinkRequest, email, false, "lookup failed")
		return err
	}
	if user == nil {
		// don't leak existence; the caller still sees "accepted"
		s.audit.Record(models.EventResetLinkRequest, email, false, "unknown identifier")
		log.Printf("[password-reset] request for unknown identifier")
		return nil
	}

	token, err := utils.NewSecureToken(32)
	if err != nil {
		s.audit.Record(models.EventResetLinkRequest, email, false, "token generation failed")
		return err
	}
	if _, err := s.tokens.Issue(email, token, time.Now().Add(s.tokenTTL)); err != nil {
		s.audit.Record(models.EventResetLinkRequest, email, false, "token store failed")
		return err
	}

	detail := "reset link issued"
	if s.emails != nil {
		if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
			// the token stays valid so a resend can still complete
			log.Printf("[password-reset] failed to send email to %s: %v", user.Email, err)
			detail = "reset link issued; delivery failed"
		}
	}
	s.audit.Record(models.EventResetLinkRequest, email, true, detail)
	return nil
}

// classify applies the fixed check order: invalid -> expired -> already used.
// The same order holds for validate and consume so failures never leak which
// check tripped first.
func (s *passwordResetService) classify(token string) (*models.ResetToken, error) {
	rt, err := s.tokens.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, ErrTokenInvalid
	}
	if time.Now().After(rt.ExpiresAt) {
		return rt, ErrTokenExpired
	}
	if rt.UsedAt != nil {
		return rt, ErrTokenAlreadyUsed
	}
	return rt, nil
}

func (s *passwordResetService) Validate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenInvalid
	}
	rt, err := s.classify(token)
	if err != nil {
		identifier := ""
		if rt != nil {
			identifier = rt.Identifier
		}
		s.audit.Record(models.EventResetLinkComplete, identifier, false, "token validation failed: "+err.Error())
		return "", err
	}
	return rt.Identifier, nil
}

func (s *passwordResetService) Consume(token, newPassword string) error {
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return fmt.Errorf("token and password are required")
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	rt, err := s.classify(token)
	if err != nil {
		identifier := ""
		if rt != nil {
			identifier = rt.Identifier
		}
		s.audit.Record(models.EventResetLinkComplete, identifier, false, "consume rejected: "+err.Error())
		return err
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.tokens.ConsumeAndRotate(token, hash)
	if err != nil {
		s.audit.Record(models.EventResetLinkComplete, rt.Identifier, false, "consume failed")
		return err
	}
	if consumed == nil {
		// lost the race between classify and the guarded update
		_, raceErr := s.classify(token)
		if raceErr == nil {
			raceErr = ErrTokenAlreadyUsed
		}
		s.audit.Record(models.EventResetLinkComplete, rt.Identifier, false, "consume rejected: "+raceErr.Error())
		return raceErr
	}

	s.audit.Record(models.EventResetLinkComplete, consumed.Identifier, true, "password reset completed")
	if s.emails != nil {
		if err := s.emails.SendPasswordChangedNotice(consumed.Identifier); err != nil {
			log.Printf("[password-reset] failed to send changed notice to %s: %v", consumed.Identifier, err)
		}
	}
	return nil
}
