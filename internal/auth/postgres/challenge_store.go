// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// ChallengeStore implements auth.ChallengeStore on the otp_* columns of the
// accounts table. The slot is cleared with a conditional UPDATE keyed on the
// challenge ID, so concurrent consumers cannot both succeed.
type ChallengeStore struct {
	db DB
}

// NewChallengeStore creates a new ChallengeStore.
func NewChallengeStore(db DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

// PutChallenge overwrites the account's challenge.
func (s *ChallengeStore) PutChallenge(ctx context.Context, challenge *auth.Challenge) error {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET otp_challenge_id = $2, otp_code = $3, otp_expires_at = $4, updated_at = now()
		WHERE id = $1
	`,
		challenge.AccountID.String(),
		challenge.ID.String(),
		challenge.Code,
		challenge.ExpiresAt,
	)
	if err != nil {
		return oops.Code("CHALLENGE_PUT_FAILED").
			With("operation", "store challenge").
			With("account_id", challenge.AccountID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", challenge.AccountID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// GetChallenge returns the account's outstanding challenge.
func (s *ChallengeStore) GetChallenge(ctx context.Context, accountID ulid.ULID) (*auth.Challenge, error) {
	var (
		challengeID *string
		code        *string
		expiresAt   *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT otp_challenge_id, otp_code, otp_expires_at
		FROM accounts
		WHERE id = $1
	`, accountID.String()).Scan(&challengeID, &code, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHALLENGE_GET_FAILED").
			With("operation", "get challenge").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	if challengeID == nil || code == nil || expiresAt == nil {
		return nil, oops.Code("CHALLENGE_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}

	id, err := ulid.Parse(*challengeID)
	if err != nil {
		return nil, oops.Code("CHALLENGE_CORRUPT").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return &auth.Challenge{
		ID:        id,
		AccountID: accountID,
		Code:      *code,
		ExpiresAt: *expiresAt,
	}, nil
}

// ClearChallenge nulls the challenge columns if otp_challenge_id still
// equals challengeID.
func (s *ChallengeStore) ClearChallenge(ctx context.Context, accountID, challengeID ulid.ULID) (bool, error) {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET otp_challenge_id = NULL, otp_code = NULL, otp_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND otp_challenge_id = $2
	`, accountID.String(), challengeID.String())
	if err != nil {
		return false, oops.Code("CHALLENGE_CLEAR_FAILED").
			With("operation", "clear challenge").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

var _ auth.ChallengeStore = (*ChallengeStore)(nil)
