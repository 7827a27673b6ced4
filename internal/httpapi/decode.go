// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object into dst. Unknown fields,
// trailing data and oversized bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return oops.Code("HTTP_BODY_TOO_LARGE").
				With("field", "body").
				With("limit", maxErr.Limit).
				Wrapf(auth.ErrValidation, "request body too large")
		}
		return oops.Code("HTTP_BAD_JSON").
			With("field", "body").
			With("reason", err.Error()).
			Wrapf(auth.ErrValidation, "malformed request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return oops.Code("HTTP_BAD_JSON").
			With("field", "body").
			Wrapf(auth.ErrValidation, "request body must contain a single object")
	}
	return nil
}
