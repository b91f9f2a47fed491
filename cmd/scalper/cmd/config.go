package cmd

import (
	"fmt"

	"github.com/rustyeddy/scalper/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage scalper configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  scalper config init -o scalper.yaml
  scalper config validate -f scalper.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  scalper config init -o scalper.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  scalper config validate -f scalper.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "scalper.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  scalper replay -c %s --candles data.csv --plan setups.yaml\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account: %s (%.2f %s, %gx)\n", cfg.Account.ID, cfg.Account.Balance, cfg.Account.Currency, cfg.Account.Leverage)
	fmt.Fprintf(out, "  Risk: %.2f%% per trade, %d open, %d/day, %.2f%% daily loss\n",
		cfg.Risk.RiskPct*100, cfg.Risk.MaxOpenTrades, cfg.Risk.MaxTradesPerDay, cfg.Risk.MaxDailyLossPct*100)
	fmt.Fprintf(out, "  Exits: ATR(%d) SL %.1fx TP %.1fx, min R:R %.2f, timeout %gm\n",
		cfg.Exits.ATRPeriod, cfg.Exits.SLMultiplier, cfg.Exits.TPMultiplier, cfg.Exits.MinRiskReward, cfg.Exits.TimeoutMinutes)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}
