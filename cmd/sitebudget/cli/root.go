// Package cli implements the sitebudget command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitebudget/sitebudget/internal/app"
)

var flagEnvFile string

var rootCmd = &cobra.Command{
	Use:           "sitebudget",
	Short:         "Construction project budget tracker",
	Long:          "Track construction project budgets and department spending entries.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Optional dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, accountCmd)
}

func loadConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig(flagEnvFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg), nil
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Store, error) {
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Info("applied migrations", slog.Int("count", applied), slog.String("driver", store.Driver))
	}
	return store, nil
}
