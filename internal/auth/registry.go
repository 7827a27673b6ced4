// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Registry creates accounts and looks them up.
type Registry struct {
	repo   AccountRepository
	hasher PasswordHasher
	now    func() time.Time
}

// NewRegistry creates a Registry.
func NewRegistry(repo AccountRepository, hasher PasswordHasher) (*Registry, error) {
	if repo == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Registry{repo: repo, hasher: hasher, now: time.Now}, nil
}

// Create registers a new account. It fails with ErrDuplicateCredential if
// the name or email is taken, and with ErrValidation for malformed input.
func (r *Registry) Create(ctx context.Context, in RegisterInput) (*Account, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	// Fast path only; repo.Create is what enforces uniqueness.
	if err := r.ensureAvailable(ctx, in.Name, in.Email); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := r.now()
	account := &Account{
		ID:           ulid.Make(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *Registry) ensureAvailable(ctx context.Context, name, email string) error {
	if _, err := r.repo.GetByName(ctx, name); err == nil {
		return oops.Code("ACCOUNT_DUPLICATE").With("field", "name").Wrap(ErrDuplicateCredential)
	} else if !errors.Is(err, ErrNotFound) {
		return oops.With("operation", "check name").Wrap(err)
	}
	if _, err := r.repo.GetByEmail(ctx, email); err == nil {
		return oops.Code("ACCOUNT_DUPLICATE").With("field", "email").Wrap(ErrDuplicateCredential)
	} else if !errors.Is(err, ErrNotFound) {
		return oops.With("operation", "check email").Wrap(err)
	}
	return nil
}

// FindByEmail returns the account with the given email after normalizing it.
func (r *Registry) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").With("field", "email").Wrapf(ErrValidation, "email is required")
	}
	return r.repo.GetByEmail(ctx, email)
}

// FindByID returns the account with the given ID.
func (r *Registry) FindByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	return r.repo.GetByID(ctx, id)
}

// FindByName returns the account with the given name.
func (r *Registry) FindByName(ctx context.Context, name string) (*Account, error) {
	return r.repo.GetByName(ctx, strings.TrimSpace(name))
}
