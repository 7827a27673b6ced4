// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// AuthService is the subset of *auth.Service the API calls.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Account, error)
	InitiateLogin(ctx context.Context, email string) (ulid.ULID, error)
	VerifyLogin(ctx context.Context, accountID ulid.ULID, code string) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*auth.SessionClaims, error)
}

type handlers struct {
	svc    AuthService
	logger *slog.Logger
}

type initiateLoginRequest struct {
	Email string `json:"email"`
}

type initiateLoginResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type verifyLoginRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

type verifyLoginResponse struct {
	Message     string           `json:"message"`
	AccessToken string           `json:"accessToken"`
	UserData    auth.AccountView `json:"userData"`
}

type homeUser struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role auth.Role `json:"role"`
}

type homeResponse struct {
	Message string   `json:"message"`
	User    homeUser `json:"user"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, account.View())
}

func (h *handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	var req initiateLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	accountID, err := h.svc.InitiateLogin(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateLoginResponse{
		Message: "OTP sent to email",
		UserID:  accountID.String(),
	})
}

func (h *handlers) verifyLogin(w http.ResponseWriter, r *http.Request) {
	var req verifyLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	accountID, err := ulid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		writeError(w, r, h.logger, oops.Code("HTTP_INVALID_USER_ID").
			With("field", "userId").
			Wrapf(auth.ErrValidation, "userId is not a valid id"))
		return
	}

	result, err := h.svc.VerifyLogin(r.Context(), accountID, strings.TrimSpace(req.OTP))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyLoginResponse{
		Message:     "Login successful",
		AccessToken: result.Token,
		UserData:    result.Account.View(),
	})
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, oops.Code("HTTP_MISSING_CLAIMS").Errorf("home reached without claims"))
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{
		Message: "Welcome to Home",
		User: homeUser{
			ID:   claims.AccountID.String(),
			Name: claims.Name,
			Role: claims.Role,
		},
	})
}

func (h *handlers) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "Endpoint not found"})
}

func (h *handlers) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: "Method not allowed"})
}
