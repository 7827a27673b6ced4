// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements auth.ChallengeStore on Redis. Each account's
// challenge lives in one hash that Redis expires shortly after the code does.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// DefaultKeyPrefix namespaces challenge keys.
const DefaultKeyPrefix = "otpgate:otp:"

// expiryGrace keeps an expired challenge readable briefly so verification
// reports it as expired rather than missing.
const expiryGrace = time.Minute

const (
	fieldID      = "id"
	fieldCode    = "code"
	fieldExpires = "exp"
)

// clearChallengeLua deletes KEYS[1] only if its id field equals ARGV[1].
var clearChallengeLua = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "id") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ChallengeStore implements auth.ChallengeStore. It does not know about
// accounts; callers check existence before PutChallenge.
type ChallengeStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a ChallengeStore.
type Option func(*ChallengeStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *ChallengeStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *ChallengeStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewChallengeStore creates a ChallengeStore.
func NewChallengeStore(client goredis.UniversalClient, opts ...Option) *ChallengeStore {
	s := &ChallengeStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChallengeStore) key(accountID ulid.ULID) string {
	return s.prefix + accountID.String()
}

// PutChallenge replaces the account's challenge in one MULTI/EXEC.
func (s *ChallengeStore) PutChallenge(ctx context.Context, challenge *auth.Challenge) error {
	key := s.key(challenge.AccountID)
	ttl := challenge.ExpiresAt.Sub(s.now()) + expiryGrace
	if ttl < time.Second {
		ttl = time.Second
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldID, challenge.ID.String(),
			fieldCode, challenge.Code,
			fieldExpires, strconv.FormatInt(challenge.ExpiresAt.UnixMilli(), 10),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return oops.Code("CHALLENGE_PUT_FAILED").
			With("operation", "store challenge").
			With("account_id", challenge.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetChallenge returns the account's outstanding challenge.
func (s *ChallengeStore) GetChallenge(ctx context.Context, accountID ulid.ULID) (*auth.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, s.key(accountID)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, oops.Code("CHALLENGE_GET_FAILED").
			With("operation", "get challenge").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("CHALLENGE_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}

	id, err := ulid.Parse(fields[fieldID])
	if err != nil {
		return nil, corrupt(accountID, fieldID, err)
	}
	expMillis, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return nil, corrupt(accountID, fieldExpires, err)
	}
	return &auth.Challenge{
		ID:        id,
		AccountID: accountID,
		Code:      fields[fieldCode],
		ExpiresAt: time.UnixMilli(expMillis).UTC(),
	}, nil
}

// ClearChallenge deletes the challenge if its ID still equals challengeID.
func (s *ChallengeStore) ClearChallenge(ctx context.Context, accountID, challengeID ulid.ULID) (bool, error) {
	n, err := clearChallengeLua.Run(ctx, s.client, []string{s.key(accountID)}, challengeID.String()).Int64()
	if err != nil {
		return false, oops.Code("CHALLENGE_CLEAR_FAILED").
			With("operation", "clear challenge").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return n == 1, nil
}

func corrupt(accountID ulid.ULID, field string, err error) error {
	return oops.Code("CHALLENGE_CORRUPT").
		With("account_id", accountID.String()).
		With("field", field).
		Wrap(err)
}

var _ auth.ChallengeStore = (*ChallengeStore)(nil)
