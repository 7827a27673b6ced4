// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/auth/mocks"
)

// logEntry represents a parsed JSON log entry.
type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Operation string `json:"operation"`
	Kind      string `json:"kind"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	AccountID string `json:"account_id"`
}

func parseLogs(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e logEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestService_LogsDomainRejectionAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := newHarness(t, auth.WithLogger(logger))

	id, code := h.registerAndInitiate(t, "alice", "a@x.com")
	buf.Reset()

	_, err := h.svc.VerifyLogin(context.Background(), id, otherCode(code))
	require.ErrorIs(t, err, auth.ErrMismatch)

	entries := parseLogs(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "verify_login", entries[0].Operation)
	assert.Equal(t, "mismatch", entries[0].Kind)
	assert.Equal(t, id.String(), entries[0].AccountID)
	assert.NotContains(t, buf.String(), `"`+code+`"`, "codes are never logged")
}

func TestService_LogsInternalFailureAtError(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	accounts := mocks.NewMockAccountRepository(t)
	challenges := mocks.NewMockChallengeStore(t)
	account := &auth.Account{ID: ulid.Make(), Name: "alice", Email: "a@x.com", Role: auth.RoleUser}
	accounts.On("GetByEmail", ctx, "a@x.com").Return(account, nil)
	accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	challenges.On("PutChallenge", ctx, mock.AnythingOfType("*auth.Challenge")).
		Return(errors.New("database connection lost"))

	registry, err := auth.NewRegistry(accounts, mocks.NewMockPasswordHasher(t))
	require.NoError(t, err)
	manager, err := auth.NewChallengeManager(accounts, challenges)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	svc, err := auth.NewService(registry, manager, tokens, mocks.NewMockNotifier(t), auth.WithLogger(logger))
	require.NoError(t, err)

	_, err = svc.InitiateLogin(ctx, "a@x.com")
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))

	entries := parseLogs(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "initiate_login", entries[0].Operation)
	assert.Contains(t, entries[0].Error, "database connection lost")
}

func TestService_LogsSuccessWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := newHarness(t, auth.WithLogger(logger))

	id, code := h.registerAndInitiate(t, "alice", "a@x.com")
	result, err := h.svc.VerifyLogin(context.Background(), id, code)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "account registered")
	assert.Contains(t, out, "otp issued")
	assert.Contains(t, out, "login verified")
	assert.NotContains(t, out, `"`+code+`"`)
	assert.NotContains(t, out, "p1")
	assert.NotContains(t, out, result.Token)
}
