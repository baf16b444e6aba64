// Package mailer is the outgoing-mail boundary.  Callers hand it a
// recipient, subject and plain-text body; whether anything is actually
// delivered depends on which implementation is wired at startup.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/kwanjai/budbook/internal/config"
)

// Mailer sends one plain-text message.  Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(to, subject, body string) error
}

// New returns an SMTP mailer when a host is configured, otherwise the
// logging fallback so demo runs work without a mail server.
func New(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		log.Println("mailer: SMTP_HOST not set, outgoing mail will be logged only")
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer delivers over plain SMTP with optional AUTH.
type SMTPMailer struct {
	cfg config.MailConfig
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)
	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer prints the message instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(to, subject, body string) error {
	log.Printf("mail (demo mode) | to=%s | subject=%q | body=%q", to, subject, body)
	return nil
}
