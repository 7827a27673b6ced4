// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every otpgate environment variable. Nested keys use a
// double underscore, e.g. OTPGATE_AUTH__JWT_SECRET.
const EnvPrefix = "OTPGATE_"

// DefaultEnvFile is read when present.
const DefaultEnvFile = ".env"

// conventionalEnv maps unprefixed variables that deployments commonly set.
var conventionalEnv = map[string]string{
	"DATABASE_URL": "database.url",
	"JWT_SECRET":   "auth.jwt_secret",
	"REDIS_ADDR":   "redis.addr",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]struct{}{
	"http.cors_origins":      {},
	"auth.allowed_emails":    {},
	"notifier.kafka.brokers": {},
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are ignored by Load.
var FlagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
}

// LoadOptions selects the sources for Load.
type LoadOptions struct {
	// File is a YAML config file. Empty skips the file layer.
	File string
	// EnvFile is a dotenv file loaded into the process environment without
	// overriding variables that are already set. A missing file is ignored.
	EnvFile string
	// Flags are applied last; only flags the user changed take effect.
	Flags *pflag.FlagSet
}

// Load builds a Config from defaults, then File, EnvFile, the environment
// and Flags, in that order, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg, err := load(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without the final Validate, for commands that
// need only part of the configuration.
func LoadUnvalidated(opts LoadOptions) (*Config, error) {
	return load(opts)
}

func load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), koanfyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env_file", opts.EnvFile).Wrap(err)
		}
	}

	conventional := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		mapped, ok := conventionalEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapped, value
	})
	if err := k.Load(conventional, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		flags := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns OTPGATE_AUTH__JWT_SECRET into auth.jwt_secret.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if _, ok := listKeys[key]; ok {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
