package cmd

import (
	"fmt"
	"strconv"

	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/events"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/replay"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay historical candles against a plan of setups",
	Long: `Replay candle data from CSV through the execution engine.

The candle file has the columns time,instrument,open,high,low,close,volume.
The plan is a YAML list of setups, each proposed on the first bar at or
after its time. Trades are journaled per the configuration and a session
summary is printed at the end.

Examples:
  scalper replay --candles data/eurusd-m1.csv --plan setups.yaml
  scalper replay -c scalper.yaml --candles data.csv --plan setups.yaml --rate GBP/USD=1.27`,
	RunE: runReplay,
}

var (
	replayConfigPath  string
	replayCandlesPath string
	replayPlanPath    string
	replayDBPath      string
	replayHistory     int
	replayFormat      string
	replayRates       map[string]string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "c", "", "path to config file (defaults when empty)")
	replayCmd.Flags().StringVar(&replayCandlesPath, "candles", "", "candle CSV file (required)")
	replayCmd.Flags().StringVar(&replayPlanPath, "plan", "", "YAML setup plan (required)")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path, overrides the config")
	replayCmd.Flags().IntVar(&replayHistory, "history", replay.DefaultHistory, "bars passed with each setup")
	replayCmd.Flags().StringVar(&replayFormat, "format", "table", "summary format (table or org)")
	replayCmd.Flags().StringToStringVar(&replayRates, "rate", nil, "conversion rates QUOTE/ACCOUNT=value")
	replayCmd.MarkFlagRequired("candles")
	replayCmd.MarkFlagRequired("plan")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, replayConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if replayDBPath != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = replayDBPath
	}

	series, err := market.LoadCandlesCSV(replayCandlesPath)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	plan, err := replay.LoadPlan(replayPlanPath)
	if err != nil {
		return err
	}

	rates := market.StaticRates{}
	for k, v := range replayRates {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("rate %s: %w", k, err)
		}
		rates[k] = r
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	bus := events.New()
	if err := events.LogTrades(bus, log.WithField("component", "replay")); err != nil {
		return err
	}

	opts := cfg.EngineOptions()
	opts.Rates = rates
	opts.Journal = j
	opts.Listeners = []engine.Listener{bus}
	opts.Logger = log.WithField("component", "engine")

	log.WithFields(log.Fields{
		"candles":     replayCandlesPath,
		"instruments": series.Instruments(),
		"setups":      len(plan.Setups),
	}).Info("replay starting")

	res, err := replay.Run(ctx, series, plan, replay.Config{
		Account: cfg.EngineAccount(),
		Options: opts,
		History: replayHistory,
	})
	bus.Wait()
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	log.WithFields(log.Fields{
		"bars":     res.Bars,
		"proposed": res.Proposed,
		"rejected": res.Rejected,
		"balance":  res.Account.Balance,
	}).Info("replay complete")

	out := cmd.OutOrStdout()
	if replayFormat == "org" {
		s, err := journal.FormatSummaryOrg(replayCandlesPath, res.Summary)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		fmt.Fprintln(out, journal.FormatTradesOrg(res.Trades))
		return nil
	}
	journal.RenderSummary(out, res.Summary, cfg.Account.Currency)
	if len(res.Trades) > 0 {
		journal.RenderTrades(out, res.Trades)
	}
	return nil
}
