// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	fileNames := make(map[string]bool)
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
		assert.True(t, pattern.MatchString(entry.Name()),
			"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
	}

	for name := range fileNames {
		if up, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, fileNames[up+".down.sql"], "%s has no down migration", name)
		}
	}
	assert.True(t, fileNames["000001_create_accounts.up.sql"])
}

func TestMigrationsFS_AccountsConstraints(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_accounts.up.sql")
	require.NoError(t, err)
	sql := string(up)

	// postgres.AccountRepository maps these names to the duplicated field.
	assert.Contains(t, sql, "CONSTRAINT accounts_name_key UNIQUE (name)")
	assert.Contains(t, sql, "CONSTRAINT accounts_email_key UNIQUE (email)")
	for _, col := range []string{"otp_challenge_id", "otp_code", "otp_expires_at"} {
		assert.Contains(t, sql, col)
	}
}
