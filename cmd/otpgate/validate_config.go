// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holomush/otpgate/internal/config"
)

// NewValidateConfigCmd creates the validate-config subcommand.
func NewValidateConfigCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate configuration without starting the server",
		Long: `Checks the --config file against the JSON Schema, then loads every
configuration layer and validates the result. Does NOT connect to any backend.

Useful in CI pipelines and deploy hooks:
  otpgate validate-config --config otpgate.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path := root.configPath(); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
				if err := config.ValidateYAML(data); err != nil {
					return fmt.Errorf("config file does not match schema: %w", err)
				}
			}
			cfg, err := root.loadConfig(cmd, true)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cmd.Printf("Configuration valid (accounts=%s, challenges=%s, notifier=%s)\n",
				cfg.Store.Accounts, cfg.Store.Challenges, cfg.Notifier.Kind)
			return nil
		},
	}
}
