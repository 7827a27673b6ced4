// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth collaborator interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/otpgate/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t TestingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

func accountResult(ret mock.Arguments) (*auth.Account, error) {
	var a *auth.Account
	if v := ret.Get(0); v != nil {
		a = v.(*auth.Account)
	}
	return a, ret.Error(1)
}

// MockAccountRepository mocks auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t TestingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	register(t, &m.Mock)
	return m
}

// Create implements auth.AccountRepository.
func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// GetByID implements auth.AccountRepository.
func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	return accountResult(m.Called(ctx, id))
}

// GetByEmail implements auth.AccountRepository.
func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return accountResult(m.Called(ctx, email))
}

// GetByName implements auth.AccountRepository.
func (m *MockAccountRepository) GetByName(ctx context.Context, name string) (*auth.Account, error) {
	return accountResult(m.Called(ctx, name))
}

// MockChallengeStore mocks auth.ChallengeStore.
type MockChallengeStore struct {
	mock.Mock
}

// NewMockChallengeStore creates a mock that asserts its expectations on cleanup.
func NewMockChallengeStore(t TestingT) *MockChallengeStore {
	m := &MockChallengeStore{}
	register(t, &m.Mock)
	return m
}

// PutChallenge implements auth.ChallengeStore.
func (m *MockChallengeStore) PutChallenge(ctx context.Context, challenge *auth.Challenge) error {
	return m.Called(ctx, challenge).Error(0)
}

// GetChallenge implements auth.ChallengeStore.
func (m *MockChallengeStore) GetChallenge(ctx context.Context, accountID ulid.ULID) (*auth.Challenge, error) {
	ret := m.Called(ctx, accountID)
	var c *auth.Challenge
	if v := ret.Get(0); v != nil {
		c = v.(*auth.Challenge)
	}
	return c, ret.Error(1)
}

// ClearChallenge implements auth.ChallengeStore.
func (m *MockChallengeStore) ClearChallenge(ctx context.Context, accountID, challengeID ulid.ULID) (bool, error) {
	ret := m.Called(ctx, accountID, challengeID)
	return ret.Bool(0), ret.Error(1)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(t, &m.Mock)
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t TestingT) *MockNotifier {
	m := &MockNotifier{}
	register(t, &m.Mock)
	return m
}

// Send implements auth.Notifier.
func (m *MockNotifier) Send(ctx context.Context, email, code string) bool {
	return m.Called(ctx, email, code).Bool(0)
}

// MockMetrics mocks auth.Metrics.
type MockMetrics struct {
	mock.Mock
}

// NewMockMetrics creates a mock that asserts its expectations on cleanup.
func NewMockMetrics(t TestingT) *MockMetrics {
	m := &MockMetrics{}
	register(t, &m.Mock)
	return m
}

// RecordRegistration implements auth.Metrics.
func (m *MockMetrics) RecordRegistration(outcome string) { m.Called(outcome) }

// RecordLoginInitiation implements auth.Metrics.
func (m *MockMetrics) RecordLoginInitiation(outcome string) { m.Called(outcome) }

// RecordLoginVerification implements auth.Metrics.
func (m *MockMetrics) RecordLoginVerification(outcome string) { m.Called(outcome) }

// RecordTokenIssued implements auth.Metrics.
func (m *MockMetrics) RecordTokenIssued() { m.Called() }

var (
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.ChallengeStore    = (*MockChallengeStore)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.Notifier          = (*MockNotifier)(nil)
	_ auth.Metrics           = (*MockMetrics)(nil)
)
