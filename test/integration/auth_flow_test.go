// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/otpgate/internal/auth"
	authpg "github.com/holomush/otpgate/internal/auth/postgres"
	"github.com/holomush/otpgate/internal/store"
)

const jwtSecret = "integration-secret-0123456789abcdef"

// testEnv holds a migrated PostgreSQL container and the service built on it.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
	outbox    *outbox
	svc       *auth.Service
}

// outbox captures the most recent code delivered to each address.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) Send(_ context.Context, email, code string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[email] = code
	return true
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel, outbox: &outbox{codes: map[string]string{}}}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("otpgate"),
		postgres.WithUsername("otpgate"),
		postgres.WithPassword("otpgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	upErr := migrator.Up()
	closeErr := migrator.Close()
	if err := errors.Join(upErr, closeErr); err != nil {
		env.cleanup()
		return nil, err
	}

	env.pool, err = store.Connect(ctx, connStr, 5)
	if err != nil {
		env.cleanup()
		return nil, err
	}

	accounts := authpg.NewAccountRepository(env.pool)
	params := auth.DefaultArgon2Params()
	params.Memory = 8 * 1024
	params.Threads = 1
	hasher, err := auth.NewArgon2idHasherWithParams(params)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	registry, err := auth.NewRegistry(accounts, hasher)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	challenges, err := auth.NewChallengeManager(accounts, authpg.NewChallengeStore(env.pool))
	if err != nil {
		env.cleanup()
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte(jwtSecret), Issuer: "otpgate"})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.svc, err = auth.NewService(registry, challenges, tokens, env.outbox,
		auth.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		env.cleanup()
		return nil, err
	}
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

var _ = Describe("OTP login against PostgreSQL", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	Describe("registration", func() {
		It("creates an account and rejects a second one with the same email", func() {
			account, err := env.svc.Register(env.ctx, auth.RegisterInput{
				Name: "alice", Email: "Alice@Example.com", Password: "correct horse",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(account.Email).To(Equal("alice@example.com"))
			Expect(account.Role).To(Equal(auth.RoleUser))

			_, err = env.svc.Register(env.ctx, auth.RegisterInput{
				Name: "alice2", Email: "alice@example.com", Password: "x",
			})
			Expect(err).To(MatchError(auth.ErrDuplicateCredential))
		})

		It("lets exactly one of many concurrent duplicate registrations succeed", func() {
			const racers = 8
			var wins, dupes atomic.Int32
			var wg sync.WaitGroup
			for range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := env.svc.Register(env.ctx, auth.RegisterInput{
						Name: "racer", Email: "racer@example.com", Password: "pw",
					})
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, auth.ErrDuplicateCredential):
						dupes.Add(1)
					default:
						Fail("unexpected error: " + err.Error())
					}
				}()
			}
			wg.Wait()
			Expect(wins.Load()).To(Equal(int32(1)))
			Expect(dupes.Load()).To(Equal(int32(racers - 1)))
		})
	})

	Describe("login", func() {
		It("issues a token for the delivered code and consumes it", func() {
			accountID, err := env.svc.InitiateLogin(env.ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			code := env.outbox.code("alice@example.com")
			Expect(code).To(MatchRegexp(`^[1-9][0-9]{5}$`))

			result, err := env.svc.VerifyLogin(env.ctx, accountID, code)
			Expect(err).NotTo(HaveOccurred())

			claims, err := env.svc.Authenticate(env.ctx, result.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.AccountID).To(Equal(accountID))
			Expect(claims.Name).To(Equal("alice"))

			_, err = env.svc.VerifyLogin(env.ctx, accountID, code)
			Expect(err).To(MatchError(auth.ErrExpired))
		})

		It("invalidates the earlier code when a new one is issued", func() {
			accountID, err := env.svc.InitiateLogin(env.ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			first := env.outbox.code("alice@example.com")

			_, err = env.svc.InitiateLogin(env.ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			second := env.outbox.code("alice@example.com")

			if first != second {
				_, err = env.svc.VerifyLogin(env.ctx, accountID, first)
				Expect(err).To(MatchError(auth.ErrMismatch))
			}
			_, err = env.svc.VerifyLogin(env.ctx, accountID, second)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the challenge after a wrong code", func() {
			accountID, err := env.svc.InitiateLogin(env.ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			code := env.outbox.code("alice@example.com")

			wrong := "100000"
			if code == wrong {
				wrong = "100001"
			}
			_, err = env.svc.VerifyLogin(env.ctx, accountID, wrong)
			Expect(err).To(MatchError(auth.ErrMismatch))

			_, err = env.svc.VerifyLogin(env.ctx, accountID, code)
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts a code exactly once under concurrent verification", func() {
			accountID, err := env.svc.InitiateLogin(env.ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			code := env.outbox.code("alice@example.com")

			const racers = 10
			var wins, spent atomic.Int32
			var wg sync.WaitGroup
			for range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := env.svc.VerifyLogin(env.ctx, accountID, code)
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, auth.ErrExpired):
						spent.Add(1)
					default:
						Fail("unexpected error: " + err.Error())
					}
				}()
			}
			wg.Wait()
			Expect(wins.Load()).To(Equal(int32(1)))
			Expect(spent.Load()).To(Equal(int32(racers - 1)))
		})

		It("reports unknown emails as not found", func() {
			_, err := env.svc.InitiateLogin(env.ctx, "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
