// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test immediately unless err carries oops metadata.
func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "error %q (%T) has no oops metadata", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err carries the given oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "oops code of %q", err)
}

// AssertCodedError asserts that err wraps sentinel and carries code. Domain
// errors are classified by sentinel and logged by code, so both must hold.
func AssertCodedError(t *testing.T, err, sentinel error, code string) {
	t.Helper()
	assert.True(t, errors.Is(err, sentinel), "expected %q to wrap %q", err, sentinel)
	AssertErrorCode(t, err, code)
}

// AssertErrorContext asserts that err carries key with the given value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key, "oops context of %q", err) {
		assert.Equal(t, value, ctx[key], "oops context key %q", key)
	}
}

// AssertNoErrorContext asserts that none of keys appear in err's context.
// It guards against secrets such as codes or passwords leaking into logs
// through error metadata.
func AssertNoErrorContext(t *testing.T, err error, keys ...string) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	for _, key := range keys {
		assert.NotContains(t, ctx, key, "oops context of %q", err)
	}
}
