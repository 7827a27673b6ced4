// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/pkg/errutil"
)

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", 3)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DSN")
}

func TestConnect_RetriesThenFails(t *testing.T) {
	orig := connectBackoff
	connectBackoff = time.Millisecond
	t.Cleanup(func() { connectBackoff = orig })

	// Port 1 on loopback refuses connections immediately.
	_, err := Connect(context.Background(), "postgres://otpgate@127.0.0.1:1/otpgate?connect_timeout=1", 3)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
	errutil.AssertErrorContext(t, err, "attempts", 3)
	errutil.AssertErrorContext(t, err, "host", "127.0.0.1")
}

func TestConnect_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, "postgres://otpgate@127.0.0.1:1/otpgate", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
