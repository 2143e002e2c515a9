package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpattn/spstaglib/internal/config"
	"github.com/rpattn/spstaglib/internal/logger"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spstaglib",
	Short: "SPS tag library and collection catalog service",
	Long: `spstaglib manages the SPS tag library (versions, elements, attributes,
presence relations, examples and notes) and the collection catalog.

Available commands:
  serve   - Start the form and export HTTP API
  migrate - Apply pending database migrations
  seed    - Load a YAML fixture through the form path`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, found, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Logger.Infow("Configuration loaded",
			"config_file", found,
			"driver", cfg.Database.Driver,
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
