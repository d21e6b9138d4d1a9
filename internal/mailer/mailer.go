package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

const (
	FromName   = "Bookstore"
	maxRetries = 3
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Client interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP経由で送る
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
	log    *zap.Logger
}

func NewSMTPMailer(host string, port int, user, password, from string, log *zap.Logger) *SMTPMailer {
	d := mail.NewDialer(host, port, user, password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{dialer: d, from: from, log: log}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMessage()
	mm.SetAddressHeader("From", m.from, FromName)
	mm.SetHeader("To", msg.To)
	mm.SetHeader("Subject", msg.Subject)
	mm.SetBody("text/plain", msg.Body)

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = m.dialer.DialAndSend(mm); err == nil {
			return nil
		}
		m.log.Warn("send mail failed",
			zap.String("to", msg.To),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		// 1s, 2s, 4s
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second << i):
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, err)
}

// SMTPが無い環境用。送らずにログへ出す
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info("mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
