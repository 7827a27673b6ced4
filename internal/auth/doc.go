// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements registration, OTP login and session tokens.
//
// # Components
//
//   - Argon2idHasher - salted, adaptive password hashing
//   - Registry - account creation with name/email uniqueness
//   - ChallengeManager - single-slot OTP issue and single-use consume
//   - TokenIssuer - stateless HS256 session tokens
//   - Service - the register, initiate-login and verify-login operations
//
// # Login state machine
//
// An account moves Registered -> OTPPending on InitiateLogin and
// OTPPending -> Authenticated on a successful VerifyLogin. Expired or
// mismatched codes leave it in OTPPending. Initiating again replaces the
// outstanding challenge.
//
// # Storage
//
// AccountRepository and ChallengeStore are implemented by the postgres,
// memory and redis subpackages. Both uniqueness on Create and the
// compare-and-swap in ClearChallenge must be atomic in the store; the
// package itself holds no locks.
//
// # Errors
//
// Failures wrap one of the sentinels in errors.go. Use KindOf to branch.
package auth
