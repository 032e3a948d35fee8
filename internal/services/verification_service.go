package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lostandfound/internal/models"
	"lostandfound/internal/repositories"
	"lostandfound/internal/utils"
)

var (
	ErrResendThrottled = errors.New("resend throttled")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrCodeExpired     = errors.New("code expired")
	ErrCodeInvalid     = errors.New("code invalid")
	ErrDeliveryFailed  = errors.New("delivery failed")
)

// SMSSender abstracts the channel provider; it is always fallible and never
// blocks a state transition on its success.
type SMSSender interface {
	SendSMS(to, text string) (*utils.SendSMSResponse, error)
}

// VerificationService issues and verifies one-time numeric codes bound to an
// (identifier, purpose) pair, and orchestrates the SMS recovery flow on top.
type VerificationService struct {
	Codes  repositories.VerificationCodeRepository
	Users  repositories.UserRepository
	Sender SMSSender
	Audit  AuditService
	TempPw TempPasswordService

	CodeLength   int
	CodeTTL      time.Duration
	MaxAttempts  int
	MaxResends   int
	ResendWindow time.Duration
}

func NewVerificationService(
	codes repositories.VerificationCodeRepository,
	users repositories.UserRepository,
	sender SMSSender,
	audit AuditService,
	tempPw TempPasswordService,
	codeLength int,
	codeTTL time.Duration,
	maxAttempts int,
	maxResends int,
	resendWindow time.Duration,
) *VerificationService {
	return &VerificationService{
		Codes:        codes,
		Users:        users,
		Sender:       sender,
		Audit:        audit,
		TempPw:       tempPw,
		CodeLength:   codeLength,
		CodeTTL:      codeTTL,
		MaxAttempts:  maxAttempts,
		MaxResends:   maxResends,
		ResendWindow: resendWindow,
	}
}

// Issue generates a fresh code for the pair, invalidating any pending one.
// A delivery failure does not roll back issuance: the code stays valid so a
// resend can still complete, and the caller gets ErrDeliveryFailed.
func (s *VerificationService) Issue(identifier, purpose string) error {
	identifier = utils.NormalizePhone(identifier)
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	cnt, err := s.Codes.CountRecentSends(identifier, purpose, time.Now().Add(-s.ResendWindow))
	if err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "issue failed: throttle lookup")
		return err
	}
	if cnt >= s.MaxResends {
		s.Audit.Record(models.EventVerification, identifier, false, "issue rejected: resend throttled")
		return ErrResendThrottled
	}

	code, err := utils.NewNumericCode(s.CodeLength)
	if err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "issue failed: code generation")
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "issue failed: hash")
		return err
	}

	now := time.Now()
	vc := &models.VerificationCode{
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   string(hash),
		SentAt:     now,
		ExpiresAt:  now.Add(s.CodeTTL),
	}
	if err := s.Codes.Issue(vc); err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "issue failed: store")
		return err
	}

	text := fmt.Sprintf("Verification code: %s", code)
	if _, err := s.Sender.SendSMS(identifier, text); err != nil {
		log.Printf("[verify][send] delivery failed: identifier=%s purpose=%s err=%v", identifier, purpose, err)
		s.Audit.Record(models.EventVerification, identifier, true, "code issued purpose="+purpose+"; delivery failed")
		return ErrDeliveryFailed
	}

	s.Audit.Record(models.EventVerification, identifier, true, "code issued purpose="+purpose)
	log.Printf("[verify][send] ok: identifier=%s purpose=%s", identifier, purpose)
	return nil
}

// Verify fails closed: any of no pending code, consumed, attempts exhausted,
// expired or mismatch yields false. A mismatch counts an attempt before
// returning; a match consumes the code exactly once.
func (s *VerificationService) Verify(identifier, purpose, code string) (bool, error) {
	identifier = utils.NormalizePhone(identifier)

	v, err := s.Codes.GetLatest(identifier, purpose)
	if err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "verify failed: lookup")
		return false, err
	}
	if v == nil {
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: no pending code")
		return false, ErrCodeInvalid
	}
	if v.Consumed {
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: code already consumed")
		return false, ErrCodeInvalid
	}
	// attempts before expiry: a force-expired code keeps reporting exhaustion
	if v.Attempts >= s.MaxAttempts {
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: attempts exhausted")
		return false, ErrTooManyAttempts
	}
	if time.Now().After(v.ExpiresAt) {
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: code expired")
		return false, ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.Codes.IncrementAttempts(v.ID)
		if incErr != nil {
			s.Audit.Record(models.EventVerification, identifier, false, "verify failed: attempt count")
			return false, incErr
		}
		if attempts >= s.MaxAttempts {
			if expErr := s.Codes.ExpireNow(v.ID); expErr != nil {
				log.Printf("[verify][confirm] force expire failed: id=%d err=%v", v.ID, expErr)
			}
			s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: attempts exhausted")
			return false, ErrTooManyAttempts
		}
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: code mismatch")
		return false, ErrCodeInvalid
	}

	ok, err := s.Codes.Consume(v.ID)
	if err != nil {
		s.Audit.Record(models.EventVerification, identifier, false, "verify failed: consume")
		return false, err
	}
	if !ok {
		// a concurrent verify won the guarded update
		s.Audit.Record(models.EventVerification, identifier, false, "verify rejected: code already consumed")
		return false, ErrCodeInvalid
	}

	s.Audit.Record(models.EventVerification, identifier, true, "code verified purpose="+purpose)
	log.Printf("[verify][confirm] ok: identifier=%s purpose=%s", identifier, purpose)
	return true, nil
}

// RequestPasswordReset starts the SMS recovery flow. Unknown identifiers are
// recorded for audit but the caller still sees a generic acceptance.
func (s *VerificationService) RequestPasswordReset(phone string) error {
	identifier := utils.NormalizePhone(phone)
	user, err := s.Users.GetByPhone(identifier)
	if err != nil {
		return err
	}
	if user == nil {
		s.Audit.Record(models.EventVerification, identifier, false, "unknown identifier")
		log.Printf("[verify][reset-request] unknown identifier")
		return nil
	}
	return s.Issue(identifier, models.PurposePasswordReset)
}

// ConfirmPasswordReset consumes the code and hands out a temporary password
// as the verification result.
func (s *VerificationService) ConfirmPasswordReset(phone, code string) (string, error) {
	identifier := utils.NormalizePhone(phone)
	ok, err := s.Verify(identifier, models.PurposePasswordReset, code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrCodeInvalid
	}

	user, err := s.Users.GetByPhone(identifier)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return s.TempPw.Issue(user.ID)
}

func (s *VerificationService) RequestPhoneVerify(phone string) error {
	return s.Issue(phone, models.PurposePhoneVerify)
}

func (s *VerificationService) ConfirmPhoneVerify(phone, code string) (bool, error) {
	identifier := utils.NormalizePhone(phone)
	ok, err := s.Verify(identifier, models.PurposePhoneVerify, code)
	if err != nil || !ok {
		return false, err
	}
	if user, err := s.Users.GetByPhone(identifier); err == nil && user != nil {
		if err := s.Users.MarkPhoneVerified(user.ID); err != nil {
			log.Printf("[verify][confirm] mark verified failed: user_id=%d err=%v", user.ID, err)
		}
	}
	return true, nil
}
