package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yugisim/duel-server-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	version    = "dev" // set via ldflags during build
)

var rootCmd = &cobra.Command{
	Use:   "duelserver",
	Short: "Two-player duel room server",
	Long: `duelserver hosts two-player card duel rooms over WebSocket, with a gRPC
admin service, an MCP tool server and card catalog tooling.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to configuration file")
	rootCmd.AddCommand(serveCmd, mcpCmd, importCardsCmd, checkDeckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries the MCP protocol; logs always go to stderr.
	zapCfg.OutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
