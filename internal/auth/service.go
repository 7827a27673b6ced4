// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/pkg/errutil"
)

// Metrics records the outcome of each public operation. Outcome is
// "success" or a Kind.
type Metrics interface {
	RecordRegistration(outcome string)
	RecordLoginInitiation(outcome string)
	RecordLoginVerification(outcome string)
	RecordTokenIssued()
}

type noopMetrics struct{}

func (noopMetrics) RecordRegistration(string)      {}
func (noopMetrics) RecordLoginInitiation(string)   {}
func (noopMetrics) RecordLoginVerification(string) {}
func (noopMetrics) RecordTokenIssued()             {}

const outcomeSuccess = "success"

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return string(KindOf(err))
}

// LoginResult is returned by a successful VerifyLogin.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}

// Service composes the registry, challenge manager and token issuer into
// the register, initiate-login and verify-login operations.
type Service struct {
	registry   *Registry
	challenges *ChallengeManager
	tokens     *TokenIssuer
	notifier   Notifier
	policy     *EmailPolicy
	metrics    Metrics
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithEmailPolicy restricts which addresses may register.
func WithEmailPolicy(p *EmailPolicy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

// NewService creates a Service.
func NewService(registry *Registry, challenges *ChallengeManager, tokens *TokenIssuer, notifier Notifier, opts ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, oops.Errorf("registry is required")
	}
	if challenges == nil {
		return nil, oops.Errorf("challenge manager is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	s := &Service{
		registry:   registry,
		challenges: challenges,
		tokens:     tokens,
		notifier:   notifier,
		metrics:    noopMetrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (account *Account, err error) {
	defer func() { s.metrics.RecordRegistration(outcomeOf(err)) }()

	if err = s.policy.Check(in.Email); err != nil {
		s.logOutcome(ctx, "register", err)
		return nil, err
	}

	account, err = s.registry.Create(ctx, in)
	if err != nil {
		s.logOutcome(ctx, "register", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
		"role", string(account.Role),
	)
	return account, nil
}

// InitiateLogin issues an OTP for the account registered under email and
// hands it to the notifier. If delivery fails the challenge stays issued
// and ErrDeliveryFailed is returned.
func (s *Service) InitiateLogin(ctx context.Context, email string) (accountID ulid.ULID, err error) {
	defer func() { s.metrics.RecordLoginInitiation(outcomeOf(err)) }()

	account, err := s.registry.FindByEmail(ctx, email)
	if err != nil {
		s.logOutcome(ctx, "initiate_login", err)
		return ulid.ULID{}, err
	}

	challenge, err := s.challenges.Issue(ctx, account.ID)
	if err != nil {
		s.logOutcome(ctx, "initiate_login", err, "account_id", account.ID.String())
		return ulid.ULID{}, err
	}

	if !s.notifier.Send(ctx, account.Email, challenge.Code) {
		err = oops.Code("AUTH_DELIVERY_FAILED").
			With("account_id", account.ID.String()).
			With("challenge_id", challenge.ID.String()).
			Wrap(ErrDeliveryFailed)
		s.logOutcome(ctx, "initiate_login", err, "account_id", account.ID.String())
		return ulid.ULID{}, err
	}

	s.logger.InfoContext(ctx, "otp issued",
		"account_id", account.ID.String(),
		"challenge_id", challenge.ID.String(),
		"expires_at", challenge.ExpiresAt,
	)
	return account.ID, nil
}

// VerifyLogin consumes the OTP and returns a signed session token. On
// ErrExpired or ErrMismatch the caller may retry or re-initiate.
func (s *Service) VerifyLogin(ctx context.Context, accountID ulid.ULID, code string) (result *LoginResult, err error) {
	defer func() { s.metrics.RecordLoginVerification(outcomeOf(err)) }()

	if !ValidCodeFormat(code) {
		err = oops.Code("AUTH_VALIDATION_FAILED").
			With("field", "otp").
			Wrapf(ErrValidation, "otp must be %d digits", OTPLength)
		s.logOutcome(ctx, "verify_login", err, "account_id", accountID.String())
		return nil, err
	}

	account, err := s.challenges.Consume(ctx, accountID, code)
	if err != nil {
		s.logOutcome(ctx, "verify_login", err, "account_id", accountID.String())
		return nil, err
	}

	token, claims, err := s.tokens.Issue(account)
	if err != nil {
		s.logOutcome(ctx, "verify_login", err, "account_id", accountID.String())
		return nil, err
	}
	s.metrics.RecordTokenIssued()

	s.logger.InfoContext(ctx, "login verified",
		"account_id", account.ID.String(),
		"token_id", claims.TokenID.String(),
	)
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt, Account: account}, nil
}

// Authenticate verifies a session token.
func (s *Service) Authenticate(_ context.Context, token string) (*SessionClaims, error) {
	return s.tokens.Verify(token)
}

// logOutcome logs expected domain failures at WARN and everything else at
// ERROR with the full oops context.
func (s *Service) logOutcome(ctx context.Context, operation string, err error, attrs ...any) {
	attrs = append(attrs, "operation", operation)
	if IsDomain(err) {
		s.logger.WarnContext(ctx, "auth operation rejected",
			append(attrs, "kind", string(KindOf(err)), "error", err.Error())...)
		return
	}
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", err, attrs...)
}
