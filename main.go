package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "t2sql-engine",
	Short: "Text-to-SQL service: warehouse schema extraction and LLM query generation",
	Long: `t2sql-engine stores warehouse connections, extracts and normalizes their
schemas, and turns natural-language questions into SQL grounded on the
extracted schema and saved use cases. It serves a JSON API and an MCP endpoint.

Running without a subcommand starts the server.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml",
		"Path to configuration file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func main() {
	// Usage is shown for flag parse errors, but suppressed for runtime errors (via cmd.SilenceUsage)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configFile, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Env, debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
