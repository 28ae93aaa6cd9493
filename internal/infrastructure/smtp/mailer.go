package smtp

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/go-otp-api/internal/config"
)

// Mailer delivers one-time-password codes.
type Mailer interface {
	SendOTP(to, code string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	ttl      time.Duration
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		ttl:      cfg.OTPTTL,
	}
}

func (m *mailer) SendOTP(to, code string) error {
	subject := "Your Verification Code"
	body := fmt.Sprintf(
		"Your verification code is: %s. This code will expire in %d minutes.\r\n\r\n"+
			"If you didn't request this code, please ignore this email.",
		code, int(m.ttl.Minutes()))
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
