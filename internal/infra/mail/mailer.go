// Package mail sends plain-text notification emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// SMTPMailer delivers mail through a single SMTP relay with PLAIN auth.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *zap.Logger
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(host, port, username, password, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// Send delivers a plain-text message. The underlying SMTP dial does not take
// a context; ctx is checked before sending so a cancelled sweep skips the
// network round trip.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := e.Send(addr, auth); err != nil {
		return &domain.ErrExternalService{Service: "smtp", Err: err}
	}

	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogMailer is the TEST_MODE stand-in: it logs instead of dialing SMTP.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the would-be email.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("email (test mode, not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
