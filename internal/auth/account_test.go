// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/pkg/errutil"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", auth.NormalizeEmail("  A@X.Com "))
}

func TestRegisterInput_Normalize(t *testing.T) {
	in := auth.RegisterInput{Name: "  alice ", Email: " A@X.COM", Password: " p1 "}.Normalize()
	assert.Equal(t, "alice", in.Name)
	assert.Equal(t, "a@x.com", in.Email)
	assert.Equal(t, " p1 ", in.Password, "password is never altered")
	assert.Equal(t, auth.RoleUser, in.Role)
}

func TestRegisterInput_Validate(t *testing.T) {
	valid := auth.RegisterInput{Name: "alice", Email: "a@x.com", Password: "p1", Role: auth.RoleUser}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		in    auth.RegisterInput
		field string
	}{
		{"missing name", auth.RegisterInput{Email: "a@x.com", Password: "p1"}, "name"},
		{"name too long", auth.RegisterInput{Name: strings.Repeat("n", 65), Email: "a@x.com", Password: "p1"}, "name"},
		{"missing email", auth.RegisterInput{Name: "alice", Password: "p1"}, "email"},
		{"malformed email", auth.RegisterInput{Name: "alice", Email: "not-an-email", Password: "p1"}, "email"},
		{"missing password", auth.RegisterInput{Name: "alice", Email: "a@x.com"}, "password"},
		{"unknown role", auth.RegisterInput{Name: "alice", Email: "a@x.com", Password: "p1", Role: "root"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			require.ErrorIs(t, err, auth.ErrValidation)
			errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestAccount_View(t *testing.T) {
	a := &auth.Account{
		ID:           ulid.Make(),
		Name:         "alice",
		Email:        "a@x.com",
		PasswordHash: "$argon2id$secret",
		Role:         auth.RoleAdmin,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(a.View())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
	assert.Contains(t, string(data), `"role":"admin"`)
	assert.Contains(t, string(data), `"id":"`+a.ID.String()+`"`)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, auth.RoleUser.Valid())
	assert.True(t, auth.RoleAdmin.Valid())
	assert.False(t, auth.Role("superuser").Valid())
}
