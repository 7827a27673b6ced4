// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// EmailPolicy restricts which addresses may register. An empty policy
// allows every address.
type EmailPolicy struct {
	patterns []string
	globs    []glob.Glob
}

// NewEmailPolicy compiles glob patterns such as "*@example.com".
// Patterns are matched against normalized (lowercase) addresses.
func NewEmailPolicy(patterns []string) (*EmailPolicy, error) {
	p := &EmailPolicy{}
	for _, raw := range patterns {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_EMAIL_PATTERN").With("pattern", raw).Wrap(err)
		}
		p.patterns = append(p.patterns, pattern)
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Allows reports whether email may register.
func (p *EmailPolicy) Allows(email string) bool {
	if p == nil || len(p.globs) == 0 {
		return true
	}
	email = NormalizeEmail(email)
	for _, g := range p.globs {
		if g.Match(email) {
			return true
		}
	}
	return false
}

// Check returns ErrValidation when email is not allowed.
func (p *EmailPolicy) Check(email string) error {
	if p.Allows(email) {
		return nil
	}
	return oops.Code("AUTH_EMAIL_NOT_ALLOWED").
		With("field", "email").
		Wrapf(ErrValidation, "email domain is not allowed")
}

// Patterns returns the compiled patterns.
func (p *EmailPolicy) Patterns() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.patterns...)
}
