// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and the schema
// migrations for the accounts table.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectBackoff is the first retry delay; it doubles per attempt up to
// maxConnectBackoff.
var (
	connectBackoff    = 250 * time.Millisecond
	maxConnectBackoff = 5 * time.Second
)

// Connect opens a pgx pool for databaseURL and pings it, retrying with
// exponential backoff up to attempts times. The database is often still
// starting when the service boots under an orchestrator.
func Connect(ctx context.Context, databaseURL string, attempts int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_DSN").Wrap(err)
	}
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.WithCappedDuration(maxConnectBackoff, retry.NewExponential(connectBackoff))
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	var (
		pool  *pgxpool.Pool
		tries int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", tries).
			Wrap(err)
	}
	return pool, nil
}
