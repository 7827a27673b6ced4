// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/pkg/errutil"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kindStatus = map[auth.Kind]int{
	auth.KindValidation:          http.StatusBadRequest,
	auth.KindDuplicateCredential: http.StatusConflict,
	auth.KindNotFound:            http.StatusNotFound,
	auth.KindExpired:             http.StatusUnauthorized,
	auth.KindMismatch:            http.StatusUnauthorized,
	auth.KindDeliveryFailed:      http.StatusBadGateway,
	auth.KindInvalidToken:        http.StatusForbidden,
	auth.KindInternal:            http.StatusInternalServerError,
}

var kindMessage = map[auth.Kind]string{
	auth.KindValidation:          "Invalid request",
	auth.KindDuplicateCredential: "User already exists with the same name or email",
	auth.KindNotFound:            "User not found",
	auth.KindExpired:             "OTP has expired",
	auth.KindMismatch:            "Invalid OTP",
	auth.KindDeliveryFailed:      "Failed to send OTP",
	auth.KindInvalidToken:        "Invalid token",
	auth.KindInternal:            "Internal server error",
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := kindStatus[auth.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// publicMessage returns the caller-facing text for err. Validation errors
// name the offending field; internal details never leave the process.
func publicMessage(kind auth.Kind, err error) string {
	if kind == auth.KindValidation {
		if oopsErr, ok := oops.AsOops(err); ok {
			if field, ok := oopsErr.Context()["field"].(string); ok && field != "" {
				return "Invalid " + field
			}
		}
	}
	if msg, ok := kindMessage[kind]; ok {
		return msg
	}
	return kindMessage[auth.KindInternal]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected; nothing left to do
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and body. Internal errors are logged
// with their oops context.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	writeJSON(w, StatusFor(err), errorBody{Error: string(kind), Message: publicMessage(kind, err)})
}
