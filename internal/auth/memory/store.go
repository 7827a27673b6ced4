// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process account and challenge storage for
// development and tests. All operations are serialized by a single mutex.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// Store implements auth.AccountRepository and auth.ChallengeStore.
type Store struct {
	mu         sync.Mutex
	accounts   map[ulid.ULID]auth.Account
	byName     map[string]ulid.ULID
	byEmail    map[string]ulid.ULID
	challenges map[ulid.ULID]auth.Challenge
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:   make(map[ulid.ULID]auth.Account),
		byName:     make(map[string]ulid.ULID),
		byEmail:    make(map[string]ulid.ULID),
		challenges: make(map[ulid.ULID]auth.Challenge),
	}
}

// Create stores a new account, failing if the name or email is taken.
func (s *Store) Create(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[account.Name]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("field", "name").Wrap(auth.ErrDuplicateCredential)
	}
	if _, ok := s.byEmail[account.Email]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("field", "email").Wrap(auth.ErrDuplicateCredential)
	}
	if _, ok := s.accounts[account.ID]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("field", "id").Wrap(auth.ErrDuplicateCredential)
	}

	s.accounts[account.ID] = *account
	s.byName[account.Name] = account.ID
	s.byEmail[account.Email] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id, "id", id.String())
}

// GetByEmail retrieves an account by email.
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, notFound("email", email)
	}
	return s.get(id, "email", email)
}

// GetByName retrieves an account by name.
func (s *Store) GetByName(_ context.Context, name string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, notFound("name", name)
	}
	return s.get(id, "name", name)
}

func (s *Store) get(id ulid.ULID, key, value string) (*auth.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, notFound(key, value)
	}
	return &account, nil
}

func notFound(key, value string) error {
	return oops.Code("ACCOUNT_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// PutChallenge replaces the account's challenge.
func (s *Store) PutChallenge(_ context.Context, challenge *auth.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[challenge.AccountID]; !ok {
		return notFound("id", challenge.AccountID.String())
	}
	s.challenges[challenge.AccountID] = *challenge
	return nil
}

// GetChallenge returns the account's outstanding challenge.
func (s *Store) GetChallenge(_ context.Context, accountID ulid.ULID) (*auth.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[accountID]
	if !ok {
		return nil, oops.Code("CHALLENGE_NOT_FOUND").With("account_id", accountID.String()).Wrap(auth.ErrNotFound)
	}
	return &c, nil
}

// ClearChallenge removes the challenge if its ID is still challengeID.
func (s *Store) ClearChallenge(_ context.Context, accountID, challengeID ulid.ULID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[accountID]
	if !ok || c.ID != challengeID {
		return false, nil
	}
	delete(s.challenges, accountID)
	return true, nil
}

var (
	_ auth.AccountRepository = (*Store)(nil)
	_ auth.ChallengeStore    = (*Store)(nil)
)
