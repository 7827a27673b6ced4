// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/auth/memory"
	"github.com/holomush/otpgate/internal/httpapi"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (o *outbox) Send(_ context.Context, email, code string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return false
	}
	o.codes[email] = code
	return true
}

func (o *outbox) last(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

type apiHarness struct {
	handler http.Handler
	outbox  *outbox
	tokens  *auth.TokenIssuer
	svc     *auth.Service
}

func newAPI(t *testing.T, opts httpapi.Options) *apiHarness {
	t.Helper()
	store := memory.NewStore()
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	registry, err := auth.NewRegistry(store, hasher)
	require.NoError(t, err)
	challenges, err := auth.NewChallengeManager(store, store)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	box := &outbox{codes: make(map[string]string)}
	logger := slog.New(slog.DiscardHandler)
	svc, err := auth.NewService(registry, challenges, tokens, box, auth.WithLogger(logger))
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = logger
	}
	handler, err := httpapi.NewRouter(svc, opts)
	require.NoError(t, err)
	return &apiHarness{handler: handler, outbox: box, tokens: tokens, svc: svc}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// login registers alice, runs the OTP flow and returns the access token.
func (h *apiHarness) login(t *testing.T) (userID, token string) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/users/login/initiate", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	userID = decodeBody(t, rec)["userId"].(string)

	rec = h.do(t, http.MethodPost, "/api/users/login/verify", map[string]string{
		"userId": userID, "otp": h.outbox.last("a@x.com"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return userID, decodeBody(t, rec)["accessToken"].(string)
}
