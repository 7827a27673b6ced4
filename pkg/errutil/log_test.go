// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/pkg/errutil"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("ACCOUNT_CREATE_FAILED").
		With("account_id", "01H").
		Errorf("insert failed")

	errutil.LogError(logger, "register failed", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "register failed", entry["msg"])
	assert.Equal(t, "ACCOUNT_CREATE_FAILED", entry["code"])
	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok, "context should be an object")
	assert.Equal(t, "01H", ctx["account_id"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "register failed", errors.New("connection reset"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "connection reset")
	assert.NotContains(t, entry, "code")
}

func TestLogErrorContext_KeepsCallerAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("CHALLENGE_STORE_FAILED").Errorf("timeout")
	errutil.LogErrorContext(context.Background(), logger, "issue failed", err, "operation", "initiate_login")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "initiate_login", entry["operation"])
	assert.Equal(t, "CHALLENGE_STORE_FAILED", entry["code"])
}

func TestAttrs_UncodedOopsError(t *testing.T) {
	attrs := errutil.Attrs(oops.Errorf("plain"))
	assert.Equal(t, []any{"error", "plain"}, attrs)
}
