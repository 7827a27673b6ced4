// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads otpgate configuration from defaults, a YAML file,
// a dotenv file, the environment and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/otpgate/internal/auth"
	"github.com/holomush/otpgate/internal/notify"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
)

// Notifier kinds.
const (
	NotifierLog   = "log"
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"
)

// Config is the complete otpgate configuration.
type Config struct {
	Log      LogConfig      `koanf:"log" json:"log"`
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Redis    RedisConfig    `koanf:"redis" json:"redis"`
	Store    StoreConfig    `koanf:"store" json:"store"`
	Auth     AuthConfig     `koanf:"auth" json:"auth"`
	Notifier NotifierConfig `koanf:"notifier" json:"notifier"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string        `koanf:"addr" json:"addr,omitempty"`
	ReadTimeout    time.Duration `koanf:"read_timeout" json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration `koanf:"write_timeout" json:"write_timeout,omitempty"`
	RequestTimeout time.Duration `koanf:"request_timeout" json:"request_timeout,omitempty"`
	// CORSOrigins are glob patterns. Empty allows every origin.
	CORSOrigins []string `koanf:"cors_origins" json:"cors_origins,omitempty"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL             string `koanf:"url" json:"url,omitempty"`
	ConnectAttempts int    `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// RedisConfig configures the Redis challenge store.
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr,omitempty"`
	Password string `koanf:"password" json:"password,omitempty"`
	DB       int    `koanf:"db" json:"db,omitempty" jsonschema:"minimum=0"`
}

// StoreConfig selects persistence backends.
type StoreConfig struct {
	Accounts   string `koanf:"accounts" json:"accounts,omitempty" jsonschema:"enum=postgres,enum=memory"`
	Challenges string `koanf:"challenges" json:"challenges,omitempty" jsonschema:"enum=postgres,enum=redis,enum=memory"`
}

// AuthConfig configures tokens, challenges and hashing.
type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret" json:"jwt_secret,omitempty"`
	TokenTTL      time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty"`
	Issuer        string        `koanf:"issuer" json:"issuer,omitempty"`
	Leeway        time.Duration `koanf:"leeway" json:"leeway,omitempty"`
	OTPTTL        time.Duration `koanf:"otp_ttl" json:"otp_ttl,omitempty"`
	AllowedEmails []string      `koanf:"allowed_emails" json:"allowed_emails,omitempty"`
	Argon2        Argon2Config  `koanf:"argon2" json:"argon2"`
}

// Argon2Config is the password hashing work factor.
type Argon2Config struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=8"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
}

// NotifierConfig selects and configures OTP delivery.
type NotifierConfig struct {
	Kind     string        `koanf:"kind" json:"kind,omitempty" jsonschema:"enum=log,enum=smtp,enum=kafka"`
	Attempts int           `koanf:"attempts" json:"attempts,omitempty" jsonschema:"minimum=1"`
	Backoff  time.Duration `koanf:"backoff" json:"backoff,omitempty"`
	SMTP     SMTPConfig    `koanf:"smtp" json:"smtp"`
	Kafka    KafkaConfig   `koanf:"kafka" json:"kafka"`
}

// SMTPConfig configures email delivery.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"password,omitempty"`
	From     string `koanf:"from" json:"from,omitempty"`
	Subject  string `koanf:"subject" json:"subject,omitempty"`
}

// KafkaConfig configures OTP event publishing.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" json:"brokers,omitempty"`
	Topic   string   `koanf:"topic" json:"topic,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	argon := auth.DefaultArgon2Params()
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{ConnectAttempts: 5},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Store:    StoreConfig{Accounts: StorePostgres, Challenges: StorePostgres},
		Auth: AuthConfig{
			TokenTTL: auth.DefaultTokenTTL,
			Issuer:   "otpgate",
			OTPTTL:   auth.DefaultChallengeTTL,
			Argon2: Argon2Config{
				Time:      argon.Time,
				MemoryKiB: argon.Memory,
				Threads:   argon.Threads,
			},
		},
		Notifier: NotifierConfig{
			Kind:     NotifierLog,
			Attempts: 3,
			Backoff:  200 * time.Millisecond,
			SMTP:     SMTPConfig{Port: 587, Subject: notify.DefaultSubject},
			Kafka:    KafkaConfig{Topic: "otpgate.otp"},
		},
	}
}

// NeedsDatabase reports whether any selected backend is PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Accounts == StorePostgres || c.Store.Challenges == StorePostgres
}

// Validate checks the configuration for values that would fail at startup.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be json or text, got %q", c.Log.Format)
	}

	switch c.Store.Accounts {
	case StorePostgres, StoreMemory:
	default:
		return invalid("store.accounts", "unknown backend %q", c.Store.Accounts)
	}
	switch c.Store.Challenges {
	case StorePostgres, StoreRedis, StoreMemory:
	default:
		return invalid("store.challenges", "unknown backend %q", c.Store.Challenges)
	}
	if c.Store.Accounts == StoreMemory && c.Store.Challenges == StorePostgres {
		return invalid("store.challenges", "postgres challenges require postgres accounts")
	}
	if c.Store.Accounts == StorePostgres && c.Store.Challenges == StoreMemory {
		return invalid("store.challenges", "memory challenges require memory accounts")
	}
	if c.NeedsDatabase() {
		if c.Database.URL == "" {
			return invalid("database.url", "required when a postgres store is selected")
		}
		if c.Database.ConnectAttempts < 1 {
			return invalid("database.connect_attempts", "must be at least 1")
		}
	}
	if c.Store.Challenges == StoreRedis && c.Redis.Addr == "" {
		return invalid("redis.addr", "required when the redis challenge store is selected")
	}

	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return invalid("auth.jwt_secret", "must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		return invalid("auth.otp_ttl", "must be positive")
	}
	if c.Auth.Leeway < 0 {
		return invalid("auth.leeway", "must not be negative")
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return invalid("auth.argon2", "%v", err)
	}

	switch c.Notifier.Kind {
	case NotifierLog:
	case NotifierSMTP:
		if c.Notifier.SMTP.Host == "" {
			return invalid("notifier.smtp.host", "required for the smtp notifier")
		}
		if c.Notifier.SMTP.From == "" {
			return invalid("notifier.smtp.from", "required for the smtp notifier")
		}
	case NotifierKafka:
		if len(c.Notifier.Kafka.Brokers) == 0 {
			return invalid("notifier.kafka.brokers", "required for the kafka notifier")
		}
		if c.Notifier.Kafka.Topic == "" {
			return invalid("notifier.kafka.topic", "required for the kafka notifier")
		}
	default:
		return invalid("notifier.kind", "unknown notifier %q", c.Notifier.Kind)
	}
	if c.Notifier.Attempts < 1 {
		return invalid("notifier.attempts", "must be at least 1")
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s: %s", field, fmt.Sprintf(format, args...))
}

// Argon2Params returns the hashing parameters with the default salt and
// key lengths.
func (c *Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params()
	p.Time = c.Auth.Argon2.Time
	p.Memory = c.Auth.Argon2.MemoryKiB
	p.Threads = c.Auth.Argon2.Threads
	return p
}

// TokenConfig returns the session token settings.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret: []byte(c.Auth.JWTSecret),
		TTL:    c.Auth.TokenTTL,
		Issuer: c.Auth.Issuer,
		Leeway: c.Auth.Leeway,
	}
}

// SMTPSenderConfig returns the SMTP delivery settings.
func (c *Config) SMTPSenderConfig() notify.SMTPConfig {
	s := c.Notifier.SMTP
	return notify.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		Subject:  s.Subject,
		CodeTTL:  c.Auth.OTPTTL,
	}
}
