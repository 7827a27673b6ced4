// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	DefaultTokenTTL   = 15 * time.Minute
	MinSecretLength   = 32
	tokenSigningAlgHS = "HS256"
)

// SessionClaims describes an authenticated principal.
type SessionClaims struct {
	TokenID   ulid.ULID
	AccountID ulid.ULID
	Name      string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT wire form of SessionClaims.
type tokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	// Secret is the HMAC key. It must be at least MinSecretLength bytes.
	Secret []byte
	// TTL defaults to DefaultTokenTTL.
	TTL time.Duration
	// Issuer is written to and required in the iss claim when set.
	Issuer string
	// Leeway tolerates clock skew when checking exp.
	Leeway time.Duration
}

// TokenIssuer signs and verifies stateless session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock overrides the time source used for iat, exp and verification.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("min_length", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL < 0 || cfg.Leeway < 0 {
		return nil, oops.Code("AUTH_INVALID_TOKEN_CONFIG").Errorf("token ttl and leeway must not be negative")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	i := &TokenIssuer{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    ttl,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for account.
func (i *TokenIssuer) Issue(account *Account) (string, *SessionClaims, error) {
	if account == nil {
		return "", nil, oops.Code("AUTH_TOKEN_SIGN_FAILED").Errorf("account is required")
	}
	now := i.now().Truncate(time.Second)
	claims := &SessionClaims{
		TokenID:   ulid.Make(),
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      account.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID.String(),
			Subject:   claims.AccountID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, oops.Code("AUTH_TOKEN_SIGN_FAILED").With("account_id", account.ID.String()).Wrap(err)
	}
	return signed, claims, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{tokenSigningAlgHS}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_TOKEN").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}

	accountID, err := ulid.Parse(tc.Subject)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_TOKEN").With("reason", "malformed subject").Wrap(ErrInvalidToken)
	}
	if !tc.Role.Valid() {
		return nil, oops.Code("AUTH_INVALID_TOKEN").With("reason", "unknown role").Wrap(ErrInvalidToken)
	}

	claims := &SessionClaims{
		AccountID: accountID,
		Name:      tc.Name,
		Email:     tc.Email,
		Role:      tc.Role,
	}
	if id, err := ulid.Parse(tc.ID); err == nil {
		claims.TokenID = id
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
