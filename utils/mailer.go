package utils

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// Mailer sends staff notifications. Delivery is best-effort everywhere it is
// used; callers must never fail a request because the mail did not go out.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPMailer sends plain-text mail to the booking address via SMTP.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
	To   string
}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{
		Host: getenvDefault("SMTP_HOST", ""),
		Port: getenvDefault("SMTP_PORT", "587"),
		User: os.Getenv("SMTP_USER"),
		Pass: os.Getenv("SMTP_PASS"),
		From: getenvDefault("SMTP_FROM", "no-reply@koncert24.hu"),
		To:   getenvDefault("BOOKING_NOTIFY_EMAIL", "info@koncert24.hu"),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	if m.Host == "" {
		return fmt.Errorf("SMTP_HOST not set")
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + m.To,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"Date: " + time.Now().Format(time.RFC1123Z),
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}

	// smtp.SendMail has no context support; run it in a goroutine so a dead
	// server cannot hang the submission path past the caller's deadline.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{m.To}, []byte(msg))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
