package main

import (
	"fmt"
	"os"

	"momoinvoice/internal/config"
	"momoinvoice/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "momoinvoice",
	Short: "Invoicing, Paystack reconciliation and payment reminders",
	Long: `momoinvoice serves the invoicing API, reconciles Paystack webhooks
against invoices and sends scheduled payment reminders.

Configuration is read from the environment (and a .env file when present).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, remindersCmd)
}
