// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, name, email, password_hash, role, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// Uniqueness of name and email is enforced by table constraints.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.Name,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("field", constraintField(pgErr.ConstraintName)).
			With("constraint", pgErr.ConstraintName).
			Wrap(auth.ErrDuplicateCredential)
	}
	return oops.Code("ACCOUNT_CREATE_FAILED").
		With("operation", "insert account").
		With("name", account.Name).
		Wrap(err)
}

// constraintField maps a unique constraint name to the field it guards.
func constraintField(constraint string) string {
	switch {
	case strings.Contains(constraint, "email"):
		return "email"
	case strings.Contains(constraint, "name"):
		return "name"
	case strings.Contains(constraint, "pkey"):
		return "id"
	default:
		return constraint
	}
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	return r.getBy(ctx, "id", id.String())
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.getBy(ctx, "email", email)
}

// GetByName retrieves an account by name (case-sensitive).
func (r *AccountRepository) GetByName(ctx context.Context, name string) (*auth.Account, error) {
	return r.getBy(ctx, "name", name)
}

// getBy looks an account up by one of the unique columns. column is never
// caller-controlled.
func (r *AccountRepository) getBy(ctx context.Context, column, value string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With(column, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by "+column).
			With(column, value).
			Wrap(err)
	}
	return account, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr     string
		role      string
		account   auth.Account
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&idStr, &account.Name, &account.Email, &account.PasswordHash, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").With("id", idStr).Wrap(err)
	}
	account.ID = id
	account.Role = auth.Role(role)
	account.CreatedAt = createdAt
	account.UpdatedAt = updatedAt
	return &account, nil
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
