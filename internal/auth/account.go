// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is an account's authorization role.
type Role string

// Account roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a registered principal. It deliberately has no JSON tags;
// use View for any external representation.
type Account struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountView is the public projection of an Account.
type AccountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// View returns the public projection of a.
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID.String(),
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// Normalize trims the name, normalizes the email and applies the default role.
func (in RegisterInput) Normalize() RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = RoleUser
	}
	return in
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a normalized RegisterInput.
func (in RegisterInput) Validate() error {
	return validationError(validate.Struct(in))
}

// validationError converts validator failures into an ErrValidation wrapped
// with the first offending field.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("field", field).
			With("rule", fe.Tag()).
			Wrapf(ErrValidation, "%s is invalid", field)
	}
	return oops.Code("AUTH_VALIDATION_FAILED").Wrap(errors.Join(ErrValidation, err))
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. The name and email uniqueness check and
	// the insert are atomic; a collision returns an error wrapping
	// ErrDuplicateCredential.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByName retrieves an account by name (case-sensitive).
	// Returns ErrNotFound if no account has the given name.
	GetByName(ctx context.Context, name string) (*Account, error)
}
