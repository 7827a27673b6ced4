// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers one-time codes to account holders.
//
// Senders report delivery failures as errors. Notifier adapts a Sender to
// auth.Notifier, which only learns whether delivery succeeded; the error is
// logged here and never reaches the caller.
package notify

import (
	"context"
	"log/slog"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/pkg/errutil"
)

// Sender delivers an OTP code to an email address.
type Sender interface {
	Deliver(ctx context.Context, email, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email, code string) error

// Deliver calls f.
func (f SenderFunc) Deliver(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// Notifier adapts sender to auth.Notifier. Panics inside sender are
// recovered and reported as a failed delivery.
func Notifier(sender Sender, logger *slog.Logger) auth.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return auth.NotifierFunc(func(ctx context.Context, email, code string) (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "otp delivery panicked", "panic", r)
				ok = false
			}
		}()
		if err := sender.Deliver(ctx, email, code); err != nil {
			errutil.LogErrorContext(ctx, logger, "otp delivery failed", err)
			return false
		}
		return true
	})
}
