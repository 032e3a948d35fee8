package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendPasswordResetEmail(email, token string) error
	SendPasswordChangedNotice(email string) error
}

type emailService struct {
	dialer       *gomail.Dialer
	from         string
	resetBaseURL string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, resetBaseURL string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer:       dialer,
		from:         fromEmail,
		resetBaseURL: resetBaseURL,
	}
}

func (s *emailService) SendPasswordResetEmail(email, token string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password reset request")

	link := token
	if s.resetBaseURL != "" {
		link = fmt.Sprintf("%s?token=%s", s.resetBaseURL, token)
	}
	body := fmt.Sprintf(`
                <h3>Password reset requested</h3>
                <p>We received a request to reset the password for your account.</p>
                <p>Use the following link to reset your password: <strong>%s</strong></p>
                <p>The link is valid for one hour and can be used once.</p>
                <p>If you did not request this change, you can ignore this email.</p>
        `, link)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	return nil
}

func (s *emailService) SendPasswordChangedNotice(email string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your password was changed")

	body := `
                <h3>Password changed</h3>
                <p>The password for your account was just changed.</p>
                <p>If this was not you, request a new password reset immediately.</p>
        `

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password changed notice: %w", err)
	}

	return nil
}
