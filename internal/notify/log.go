// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogSender records that a code was issued without delivering it. The code
// itself is never written; it is meant for local development only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Deliver logs the recipient and code length.
func (s *LogSender) Deliver(ctx context.Context, email, code string) error {
	s.logger.InfoContext(ctx, "otp delivery (log notifier)", "email", email, "code_length", len(code))
	return nil
}
