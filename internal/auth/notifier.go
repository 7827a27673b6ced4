// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Notifier delivers an OTP code to the owner of an email address.
// Send must not panic; it returns false when delivery failed.
type Notifier interface {
	Send(ctx context.Context, email, code string) bool
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, email, code string) bool

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, email, code string) bool {
	return f(ctx, email, code)
}
