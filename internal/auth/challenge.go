// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// OTP configuration.
const (
	DefaultChallengeTTL = 5 * time.Minute
	OTPLength           = 6
	otpMin              = 100000
	otpSpan             = 900000 // otpMin..999999 inclusive
)

// Challenge is the single outstanding OTP for an account. ID changes on
// every issue and acts as the version token for ClearChallenge.
type Challenge struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Code      string
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the challenge has expired at t.
// A challenge is still valid at exactly ExpiresAt.
func (c *Challenge) IsExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// ChallengeStore holds at most one challenge per account.
type ChallengeStore interface {
	// PutChallenge atomically replaces the account's challenge.
	// Returns ErrNotFound if the account does not exist.
	PutChallenge(ctx context.Context, challenge *Challenge) error

	// GetChallenge returns the account's current challenge.
	// Returns ErrNotFound if none is outstanding.
	GetChallenge(ctx context.Context, accountID ulid.ULID) (*Challenge, error)

	// ClearChallenge removes the account's challenge only if its ID still
	// equals challengeID. It reports whether this call removed it.
	ClearChallenge(ctx context.Context, accountID, challengeID ulid.ULID) (bool, error)
}

// ChallengeManager issues and consumes OTP challenges.
type ChallengeManager struct {
	accounts AccountRepository
	store    ChallengeStore
	ttl      time.Duration
	now      func() time.Time
}

// ChallengeOption configures a ChallengeManager.
type ChallengeOption func(*ChallengeManager)

// WithChallengeTTL sets how long an issued code stays valid.
func WithChallengeTTL(ttl time.Duration) ChallengeOption {
	return func(m *ChallengeManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithChallengeClock overrides the time source.
func WithChallengeClock(now func() time.Time) ChallengeOption {
	return func(m *ChallengeManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewChallengeManager creates a ChallengeManager.
func NewChallengeManager(accounts AccountRepository, store ChallengeStore, opts ...ChallengeOption) (*ChallengeManager, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if store == nil {
		return nil, oops.Errorf("challenge store is required")
	}
	m := &ChallengeManager{
		accounts: accounts,
		store:    store,
		ttl:      DefaultChallengeTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the lifetime of issued challenges.
func (m *ChallengeManager) TTL() time.Duration {
	return m.ttl
}

// Issue generates a fresh code for the account, replacing any outstanding
// challenge. Holders of the replaced code are not notified.
func (m *ChallengeManager) Issue(ctx context.Context, accountID ulid.ULID) (*Challenge, error) {
	if _, err := m.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").Wrap(err)
	}

	challenge := &Challenge{
		ID:        ulid.Make(),
		AccountID: accountID,
		Code:      code,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.store.PutChallenge(ctx, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// Consume validates code against the account's challenge and clears it on
// success. Failed attempts leave the challenge in place.
func (m *ChallengeManager) Consume(ctx context.Context, accountID ulid.ULID, code string) (*Account, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	challenge, err := m.store.GetChallenge(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_OTP_EXPIRED").
			With("account_id", accountID.String()).
			With("reason", "no challenge").
			Wrap(ErrExpired)
	}
	if err != nil {
		return nil, err
	}

	if challenge.Code == "" || challenge.IsExpiredAt(m.now()) {
		return nil, oops.Code("AUTH_OTP_EXPIRED").
			With("account_id", accountID.String()).
			With("expires_at", challenge.ExpiresAt).
			Wrap(ErrExpired)
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		return nil, oops.Code("AUTH_OTP_MISMATCH").
			With("account_id", accountID.String()).
			Wrap(ErrMismatch)
	}

	cleared, err := m.store.ClearChallenge(ctx, accountID, challenge.ID)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, oops.Code("AUTH_OTP_EXPIRED").
			With("account_id", accountID.String()).
			With("reason", "already consumed").
			Wrap(ErrExpired)
	}
	return account, nil
}

// generateCode returns a uniformly random 6-digit code in 100000-999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// ValidCodeFormat reports whether code is exactly OTPLength ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
