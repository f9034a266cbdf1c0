package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/listingkeeper/internal/core/config"
	"github.com/solatis/listingkeeper/internal/core/logging"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "listingkeeper",
	Short:        "listingkeeper product rule engine",
	Long:         `listingkeeper evaluates user-defined rules against product records and rewrites them for marketplace listings.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...); defaults to LK_DB_URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command with ctx available to subcommands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads configuration with cmd's flags bound over file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger from cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// databaseURL returns --db-url, falling back to LK_DB_URL.
func databaseURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	if env := os.Getenv("LK_DB_URL"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("--db-url required (or set LK_DB_URL)")
}
