// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors for the authentication flow. Implementations wrap these with
// oops so callers can branch with errors.Is while logs keep the full context.
var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateCredential is returned when an account with the same name
	// or email already exists.
	ErrDuplicateCredential = errors.New("user already exists with the same name or email")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when no usable OTP challenge exists: none was
	// issued, it has expired, or it was already consumed.
	ErrExpired = errors.New("otp has expired")

	// ErrMismatch is returned when a submitted OTP does not match the
	// outstanding challenge.
	ErrMismatch = errors.New("invalid otp")

	// ErrDeliveryFailed is returned when the notifier could not deliver a code.
	ErrDeliveryFailed = errors.New("failed to send otp")

	// ErrInvalidToken is returned when a session token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Kind discriminates authentication failures.
type Kind string

// Failure kinds. KindInternal covers every error that is not one of the
// sentinels above.
const (
	KindNone                Kind = ""
	KindValidation          Kind = "validation"
	KindDuplicateCredential Kind = "duplicate_credential"
	KindNotFound            Kind = "not_found"
	KindExpired             Kind = "expired"
	KindMismatch            Kind = "mismatch"
	KindDeliveryFailed      Kind = "delivery_failed"
	KindInvalidToken        Kind = "invalid_token"
	KindInternal            Kind = "internal"
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindValidation, ErrValidation},
	{KindDuplicateCredential, ErrDuplicateCredential},
	{KindNotFound, ErrNotFound},
	{KindExpired, ErrExpired},
	{KindMismatch, ErrMismatch},
	{KindDeliveryFailed, ErrDeliveryFailed},
	{KindInvalidToken, ErrInvalidToken},
}

// KindOf classifies err. A nil error yields KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// IsDomain reports whether err is an expected, caller-facing outcome rather
// than an infrastructure failure.
func IsDomain(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindInternal
}
