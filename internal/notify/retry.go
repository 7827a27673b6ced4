// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Retrying retries a Sender with exponential backoff.
type Retrying struct {
	next     Sender
	attempts uint64
	backoff  time.Duration
}

// NewRetrying wraps next. attempts counts the first try; values below 1
// are treated as 1.
func NewRetrying(next Sender, attempts int, backoff time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Retrying{next: next, attempts: uint64(attempts), backoff: backoff}
}

// Deliver calls the wrapped sender until it succeeds, the attempts are
// exhausted, or ctx is done.
func (r *Retrying) Deliver(ctx context.Context, email, code string) error {
	b := retry.WithMaxRetries(r.attempts-1, retry.NewExponential(r.backoff))
	var tries int
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		if err := r.next.Deliver(ctx, email, code); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.With("attempts", tries).Wrap(err)
	}
	return nil
}
