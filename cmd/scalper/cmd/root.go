package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/pkg/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scalper",
	Short: "FX scalping trade execution and risk governance",
	Long: `Scalper admits, sizes, monitors and closes short-horizon FX trades.

It provides tools for:
  - Replaying candle data against a plan of trade setups
  - ATR and structure based stop-loss / take-profit placement
  - Daily risk limits, loss streak pauses and spread gates
  - Querying and summarizing the trade journal

Complete documentation is available at https://github.com/rustyeddy/scalper`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		_, err := logging.Setup(logLevel, logFormat)
		return err
	},
}

var (
	envFile   string
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with SCALPER_* overrides and OANDA_TOKEN")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
}

// loadConfig reads path, or the defaults plus environment overrides when
// path is empty. Logging is reconfigured from the file unless the flags
// were set explicitly.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		format = logFormat
	}
	if _, err := logging.Setup(level, format); err != nil {
		return nil, err
	}
	log.WithField("config", path).Debug("configuration loaded")
	return cfg, nil
}
