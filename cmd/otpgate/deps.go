// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holomush/otpgate/internal/auth/postgres"
	"github.com/holomush/otpgate/internal/config"
	"github.com/holomush/otpgate/internal/httpapi"
	"github.com/holomush/otpgate/internal/logging"
	"github.com/holomush/otpgate/internal/notify"
	"github.com/holomush/otpgate/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// LoggerSetup builds and installs the process logger.
	// Default: logging.SetDefault
	LoggerSetup func(opts logging.Options) (*slog.Logger, error)

	// DatabaseFactory opens a connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, attempts int) (Database, error)

	// Migrator applies pending migrations.
	// Default: migrateUp
	Migrator func(url string) error

	// RedisFactory creates the Redis client for the challenge store.
	// Default: goredis.NewClient
	RedisFactory func(cfg config.RedisConfig) goredis.UniversalClient

	// SenderFactory builds the OTP delivery backend. The returned closer
	// may be nil.
	// Default: newSender
	SenderFactory func(cfg *config.Config, logger *slog.Logger) (notify.Sender, io.Closer, error)

	// APIServerFactory creates the HTTP API server.
	// Default: httpapi.NewServer
	APIServerFactory func(cfg httpapi.ServerConfig, handler http.Handler, logger *slog.Logger) Server

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// Database wraps the methods serve uses from *pgxpool.Pool.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// Server wraps the methods used from httpapi.Server.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Server
	Metrics() *observability.Metrics
}
