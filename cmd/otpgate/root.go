// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/otpgate/internal/config"
	"github.com/holomush/otpgate/internal/xdg"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command for the otpgate CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "otpgate",
		Short: "otpgate - password registration with email OTP login",
		Long: `otpgate registers accounts, emails one-time passcodes on login and
exchanges a valid passcode for a signed session token.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file path (default: XDG_CONFIG_HOME/otpgate/config.yaml when present)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCmd(flags))
	cmd.AddCommand(NewMigrateCmd(flags))
	cmd.AddCommand(NewValidateConfigCmd(flags))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// configPath returns --config, or the XDG config file when the flag is unset.
func (f *rootFlags) configPath() string {
	if f.configFile != "" {
		return f.configFile
	}
	return xdg.ConfigFile()
}

// loadConfig applies the config layers, with cmd's changed flags last.
func (f *rootFlags) loadConfig(cmd *cobra.Command, validate bool) (*config.Config, error) {
	opts := config.LoadOptions{
		File:    f.configPath(),
		EnvFile: f.envFile,
		Flags:   cmd.Flags(),
	}
	if validate {
		return config.Load(opts)
	}
	return config.LoadUnvalidated(opts)
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("otpgate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
