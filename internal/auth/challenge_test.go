// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/auth/memory"
	"github.com/holomush/otpgate/internal/auth/mocks"
	"github.com/holomush/otpgate/pkg/errutil"
)

func newManager(t *testing.T, clock *fakeClock) (*auth.ChallengeManager, *memory.Store, *auth.Account) {
	t.Helper()
	store := memory.NewStore()
	account := &auth.Account{ID: ulid.Make(), Name: "alice", Email: "a@x.com", Role: auth.RoleUser}
	require.NoError(t, store.Create(context.Background(), account))
	m, err := auth.NewChallengeManager(store, store, auth.WithChallengeClock(clock.Now))
	require.NoError(t, err)
	return m, store, account
}

func TestNewChallengeManager_NilDependencies(t *testing.T) {
	_, err := auth.NewChallengeManager(nil, mocks.NewMockChallengeStore(t))
	assert.ErrorContains(t, err, "account repository is required")

	_, err = auth.NewChallengeManager(mocks.NewMockAccountRepository(t), nil)
	assert.ErrorContains(t, err, "challenge store is required")
}

func TestChallengeManager_Issue(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, store, account := newManager(t, clock)

	c, err := m.Issue(ctx, account.ID)
	require.NoError(t, err)

	assert.Equal(t, account.ID, c.AccountID)
	assert.Equal(t, clock.Now().Add(5*time.Minute), c.ExpiresAt)
	assert.Equal(t, auth.DefaultChallengeTTL, m.TTL())
	assert.True(t, auth.ValidCodeFormat(c.Code))
	n, err := strconv.Atoi(c.Code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)

	stored, err := store.GetChallenge(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)

	t.Run("unknown account", func(t *testing.T) {
		_, err := m.Issue(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("custom ttl", func(t *testing.T) {
		m2, err := auth.NewChallengeManager(store, store, auth.WithChallengeClock(clock.Now), auth.WithChallengeTTL(time.Minute))
		require.NoError(t, err)
		c, err := m2.Issue(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(time.Minute), c.ExpiresAt)
	})
}

func TestChallengeManager_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code succeeds once", func(t *testing.T) {
		m, _, account := newManager(t, newFakeClock())
		c, err := m.Issue(ctx, account.ID)
		require.NoError(t, err)

		got, err := m.Consume(ctx, account.ID, c.Code)
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		_, err = m.Consume(ctx, account.ID, c.Code)
		errutil.AssertCodedError(t, err, auth.ErrExpired, "AUTH_OTP_EXPIRED")
	})

	t.Run("no challenge is expired", func(t *testing.T) {
		m, _, account := newManager(t, newFakeClock())
		_, err := m.Consume(ctx, account.ID, "123456")
		assert.ErrorIs(t, err, auth.ErrExpired)
	})

	t.Run("unknown account", func(t *testing.T) {
		m, _, _ := newManager(t, newFakeClock())
		_, err := m.Consume(ctx, ulid.Make(), "123456")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("valid at exactly expiry, expired one instant later", func(t *testing.T) {
		clock := newFakeClock()
		m, _, account := newManager(t, clock)
		c, err := m.Issue(ctx, account.ID)
		require.NoError(t, err)

		clock.Advance(5*time.Minute + time.Nanosecond)
		_, err = m.Consume(ctx, account.ID, c.Code)
		assert.ErrorIs(t, err, auth.ErrExpired)

		c, err = m.Issue(ctx, account.ID)
		require.NoError(t, err)
		clock.Advance(5 * time.Minute)
		_, err = m.Consume(ctx, account.ID, c.Code)
		assert.NoError(t, err)
	})

	t.Run("mismatch leaves challenge for retry", func(t *testing.T) {
		m, _, account := newManager(t, newFakeClock())
		c, err := m.Issue(ctx, account.ID)
		require.NoError(t, err)

		_, err = m.Consume(ctx, account.ID, otherCode(c.Code))
		errutil.AssertCodedError(t, err, auth.ErrMismatch, "AUTH_OTP_MISMATCH")
		errutil.AssertNoErrorContext(t, err, "otp", "code")

		_, err = m.Consume(ctx, account.ID, c.Code)
		assert.NoError(t, err)
	})

	t.Run("reissue invalidates the earlier code", func(t *testing.T) {
		m, _, account := newManager(t, newFakeClock())
		first, err := m.Issue(ctx, account.ID)
		require.NoError(t, err)
		second, err := m.Issue(ctx, account.ID)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		if first.Code != second.Code {
			_, err = m.Consume(ctx, account.ID, first.Code)
			assert.ErrorIs(t, err, auth.ErrMismatch)
		}
		_, err = m.Consume(ctx, account.ID, second.Code)
		assert.NoError(t, err)
	})

	t.Run("lost compare-and-swap is reported as already consumed", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		store := mocks.NewMockChallengeStore(t)
		clock := newFakeClock()
		account := &auth.Account{ID: ulid.Make()}
		challenge := &auth.Challenge{ID: ulid.Make(), AccountID: account.ID, Code: "424242", ExpiresAt: clock.Now().Add(time.Minute)}

		accounts.On("GetByID", ctx, account.ID).Return(account, nil)
		store.On("GetChallenge", ctx, account.ID).Return(challenge, nil)
		store.On("ClearChallenge", ctx, account.ID, challenge.ID).Return(false, nil)

		m, err := auth.NewChallengeManager(accounts, store, auth.WithChallengeClock(clock.Now))
		require.NoError(t, err)
		_, err = m.Consume(ctx, account.ID, "424242")
		require.ErrorIs(t, err, auth.ErrExpired)
		errutil.AssertErrorContext(t, err, "reason", "already consumed")
	})

	t.Run("store failure is internal", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		store := mocks.NewMockChallengeStore(t)
		account := &auth.Account{ID: ulid.Make()}
		accounts.On("GetByID", ctx, account.ID).Return(account, nil)
		store.On("GetChallenge", ctx, account.ID).Return(nil, errors.New("i/o timeout"))

		m, err := auth.NewChallengeManager(accounts, store)
		require.NoError(t, err)
		_, err = m.Consume(ctx, account.ID, "424242")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
		store.AssertNotCalled(t, "ClearChallenge", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChallenge_IsExpiredAt(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &auth.Challenge{ExpiresAt: at}
	assert.False(t, c.IsExpiredAt(at.Add(-time.Second)))
	assert.False(t, c.IsExpiredAt(at))
	assert.True(t, c.IsExpiredAt(at.Add(time.Millisecond)))
}

func TestValidCodeFormat(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"１２３４５６", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ValidCodeFormat(tt.code))
		})
	}
}
