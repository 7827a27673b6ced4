// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"time"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"
)

// DefaultSubject is the subject line of OTP emails.
const DefaultSubject = "Login OTP Verification"

// Dialer sends prepared messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
	// CodeTTL is shown to the recipient as the code's lifetime.
	CodeTTL time.Duration
}

// SMTPSender emails codes as HTML messages.
type SMTPSender struct {
	dialer  Dialer
	from    string
	subject string
	ttl     time.Duration
}

// NewSMTPSender creates an SMTPSender that dials cfg.Host for every message.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp host is required")
	}
	return NewSMTPSenderWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg)
}

// NewSMTPSenderWithDialer creates an SMTPSender using dialer.
func NewSMTPSenderWithDialer(dialer Dialer, cfg SMTPConfig) (*SMTPSender, error) {
	if dialer == nil {
		return nil, oops.Errorf("dialer is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp from address is required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &SMTPSender{dialer: dialer, from: cfg.From, subject: subject, ttl: cfg.CodeTTL}, nil
}

// Deliver emails code to email.
func (s *SMTPSender) Deliver(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_CANCELED").Wrap(err)
	}

	body, err := RenderOTPEmail(code, s.ttl)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return oops.Code("NOTIFY_SMTP_FAILED").
			With("to", email).
			Wrapf(err, "send otp email")
	}
	return nil
}
