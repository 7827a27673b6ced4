// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/auth/memory"
	"github.com/holomush/otpgate/internal/auth/postgres"
	authredis "github.com/holomush/otpgate/internal/auth/redis"
	"github.com/holomush/otpgate/internal/config"
	"github.com/holomush/otpgate/internal/httpapi"
	"github.com/holomush/otpgate/internal/logging"
	"github.com/holomush/otpgate/internal/notify"
	"github.com/holomush/otpgate/internal/observability"
	"github.com/holomush/otpgate/internal/store"
)

const (
	serviceName     = "otpgate"
	shutdownTimeout = 5 * time.Second
	readinessProbe  = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and the metrics/health server. Configuration is
read from defaults, --config, --env-file, OTPGATE_* variables and flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd, true)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("http-addr", defaults.HTTP.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations on startup")

	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.LoggerSetup == nil {
		out.LoggerSetup = logging.SetDefault
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, url string, attempts int) (Database, error) {
			return store.Connect(ctx, url, attempts)
		}
	}
	if out.Migrator == nil {
		out.Migrator = migrateUp
	}
	if out.RedisFactory == nil {
		out.RedisFactory = func(cfg config.RedisConfig) goredis.UniversalClient {
			return goredis.NewClient(&goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		}
	}
	if out.SenderFactory == nil {
		out.SenderFactory = newSender
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(cfg httpapi.ServerConfig, handler http.Handler, logger *slog.Logger) Server {
			return httpapi.NewServer(cfg, handler, logger)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, observability.WithLogger(logger))
		}
	}
	return &out
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	logger, err := deps.LoggerSetup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Info("starting otpgate",
		"http_addr", cfg.HTTP.Addr,
		"accounts_store", cfg.Store.Accounts,
		"challenge_store", cfg.Store.Challenges,
		"notifier", cfg.Notifier.Kind,
	)

	var db Database
	if cfg.NeedsDatabase() {
		db, err = deps.DatabaseFactory(ctx, cfg.Database.URL, cfg.Database.ConnectAttempts)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("connected to database")

		if cfg.Database.AutoMigrate {
			if err := deps.Migrator(cfg.Database.URL); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.Info("migrations applied")
		}
	}

	var rdb goredis.UniversalClient
	if cfg.Store.Challenges == config.StoreRedis {
		rdb = deps.RedisFactory(cfg.Redis)
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	accounts, challenges, err := buildStores(cfg, db, rdb)
	if err != nil {
		return err
	}

	sender, closer, err := deps.SenderFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	if closer != nil {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				logger.Warn("error closing notifier", "error", closeErr)
			}
		}()
	}
	if cfg.Notifier.Attempts > 1 {
		sender = notify.NewRetrying(sender, cfg.Notifier.Attempts, cfg.Notifier.Backoff)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(db, rdb), logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	svc, err := buildService(cfg, accounts, challenges, notify.Notifier(sender, logger), metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	handler, err := httpapi.NewRouter(svc, httpapi.Options{
		Logger:         logger,
		Metrics:        metrics,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiServer := deps.APIServerFactory(httpapi.ServerConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, handler, logger)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopServers(logger, obsServer)
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api", logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("otpgate started")
	logger.Info("otpgate ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServers(logger, apiServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// stopServers stops each non-nil server, sharing one shutdown deadline.
func stopServers(logger *slog.Logger, servers ...Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "addr", s.Addr(), "error", err)
		}
	}
}

func buildStores(cfg *config.Config, db Database, rdb goredis.UniversalClient) (auth.AccountRepository, auth.ChallengeStore, error) {
	var accounts auth.AccountRepository
	var mem *memory.Store
	switch cfg.Store.Accounts {
	case config.StorePostgres:
		accounts = postgres.NewAccountRepository(db)
	case config.StoreMemory:
		mem = memory.NewStore()
		accounts = mem
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("field", "store.accounts").Errorf("unknown backend %q", cfg.Store.Accounts)
	}

	switch cfg.Store.Challenges {
	case config.StorePostgres:
		return accounts, postgres.NewChallengeStore(db), nil
	case config.StoreRedis:
		return accounts, authredis.NewChallengeStore(rdb), nil
	case config.StoreMemory:
		if mem == nil {
			return nil, nil, oops.Code("CONFIG_INVALID").With("field", "store.challenges").Errorf("memory challenges require memory accounts")
		}
		return accounts, mem, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("field", "store.challenges").Errorf("unknown backend %q", cfg.Store.Challenges)
	}
}

func buildService(cfg *config.Config, accounts auth.AccountRepository, challenges auth.ChallengeStore, notifier auth.Notifier, metrics auth.Metrics, logger *slog.Logger) (*auth.Service, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return nil, err
	}
	registry, err := auth.NewRegistry(accounts, hasher)
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewChallengeManager(accounts, challenges, auth.WithChallengeTTL(cfg.Auth.OTPTTL))
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.TokenConfig())
	if err != nil {
		return nil, err
	}
	policy, err := auth.NewEmailPolicy(cfg.Auth.AllowedEmails)
	if err != nil {
		return nil, err
	}
	return auth.NewService(registry, manager, tokens, notifier,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithEmailPolicy(policy),
	)
}

// newSender builds the delivery backend selected by notifier.kind.
func newSender(cfg *config.Config, logger *slog.Logger) (notify.Sender, io.Closer, error) {
	switch cfg.Notifier.Kind {
	case config.NotifierLog:
		logger.Warn("log notifier enabled; OTP codes are not delivered")
		return notify.NewLogSender(logger), nil, nil
	case config.NotifierSMTP:
		sender, err := notify.NewSMTPSender(cfg.SMTPSenderConfig())
		if err != nil {
			return nil, nil, err
		}
		return sender, nil, nil
	case config.NotifierKafka:
		writer, err := notify.NewKafkaWriter(cfg.Notifier.Kafka.Brokers, cfg.Notifier.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		sender, err := notify.NewKafkaSender(writer, cfg.Auth.OTPTTL)
		if err != nil {
			return nil, nil, errors.Join(err, writer.Close())
		}
		return sender, sender, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("field", "notifier.kind").Errorf("unknown notifier %q", cfg.Notifier.Kind)
	}
}

// readiness reports ready once every configured backend answers a ping.
func readiness(db Database, rdb goredis.UniversalClient) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessProbe)
		defer cancel()
		if db != nil && db.Ping(ctx) != nil {
			return false
		}
		if rdb != nil && rdb.Ping(ctx).Err() != nil {
			return false
		}
		return true
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It
// exits when the channel is closed or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
