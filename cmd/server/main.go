package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/logger"
	"go.uber.org/zap"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:           "docufen-engine",
	Short:         "Controlled document lifecycle engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", os.Getenv("DOCUFEN_CONFIG"), "path to a JSON or YAML config file")
}

// bootstrap loads configuration and builds the process logger shared by
// every subcommand.
func bootstrap() (*config.Configuration, *zap.Logger, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, nil, err
	}
	zapLogger, err := logger.New(logger.Options{
		Environment: cfg.Server.Environment,
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		FilePath:    cfg.Logging.FilePath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(zapLogger)
	config.LogConfig(zapLogger)
	return cfg, zapLogger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
