package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/mhd-core/internal/config"
)

var (
	configPath string
	dbPath     string
	dbType     string
	logLevel   string
	app        *application
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "mhd",
		Short:         "Track best-before dates of perishable stock",
		Long:          "mhd keeps an inventory of perishable items, classifies them as ok, soon or expired and sends one alert per item and state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeApp(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if err := app.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mhd.yaml", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Storage path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbType, "db-type", "", "Storage backend: bolt, badger, sqlite or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(newAddCommand())
	rootCmd.AddCommand(newEditCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newSettingsCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newInfoCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initializeApp(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if dbType != "" {
		cfg.Storage.Type = dbType
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err = newApplication(ctx, cfg)
	return err
}
