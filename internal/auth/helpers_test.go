// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/auth/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// outbox is a Notifier that remembers the last code per address.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	sends int
	fail  bool
}

func newOutbox() *outbox {
	return &outbox{codes: make(map[string]string)}
}

func (o *outbox) Send(_ context.Context, email, code string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sends++
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

// harness wires a Service over the in-memory store with a fake clock.
type harness struct {
	svc    *auth.Service
	store  *memory.Store
	clock  *fakeClock
	outbox *outbox
	tokens *auth.TokenIssuer
}

func newHarness(t *testing.T, opts ...auth.ServiceOption) *harness {
	t.Helper()
	h := &harness{store: memory.NewStore(), clock: newFakeClock(), outbox: newOutbox()}

	registry, err := auth.NewRegistry(h.store, newCheapHasher(t))
	require.NoError(t, err)
	challenges, err := auth.NewChallengeManager(h.store, h.store, auth.WithChallengeClock(h.clock.Now))
	require.NoError(t, err)
	h.tokens, err = auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret}, auth.WithTokenClock(h.clock.Now))
	require.NoError(t, err)

	opts = append([]auth.ServiceOption{auth.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	h.svc, err = auth.NewService(registry, challenges, h.tokens, h.outbox, opts...)
	require.NoError(t, err)
	return h
}

// registerAndInitiate registers an account and starts a login, returning
// the account ID and the delivered code.
func (h *harness) registerAndInitiate(t *testing.T, name, email string) (ulid.ULID, string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Register(ctx, auth.RegisterInput{Name: name, Email: email, Password: "p1"})
	require.NoError(t, err)
	id, err := h.svc.InitiateLogin(ctx, email)
	require.NoError(t, err)
	code := h.outbox.last(auth.NormalizeEmail(email))
	require.Len(t, code, auth.OTPLength)
	return id, code
}

// otherCode returns a well-formed code different from code.
func otherCode(code string) string {
	if code == "100000" {
		return "100001"
	}
	return "100000"
}
