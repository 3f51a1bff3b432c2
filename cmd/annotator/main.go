package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"listing-distance/internal/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:               "annotator",
	Short:             "Annotate listing pages with travel times to your locations",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	addRelayFlags(rootCmd)
	rootCmd.AddCommand(watchCmd, fileCmd)
}

// addRelayFlags registers the relay flags. Unset flags fall back to
// RELAY_URL and RELAY_TIMEOUT, which may come from .env.
func addRelayFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("relay", "", "Base URL of the relay server (default $RELAY_URL or http://localhost:8080)")
	cmd.PersistentFlags().Duration("timeout", 0, "Timeout of one distance lookup (default $RELAY_TIMEOUT or 15s)")
}

// loadConfig reads .env before any command resolves its settings.
func loadConfig(cmd *cobra.Command, args []string) error {
	config.Load()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
