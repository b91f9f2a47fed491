package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/events"
	"github.com/rustyeddy/scalper/oanda"
	"github.com/rustyeddy/scalper/replay"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper trade a plan against live OANDA candles",
	Long: `Run the engine in real time. Setups from the plan are proposed when
their time arrives, using recent OANDA candles as the history window, and
open trades are monitored every engine.monitor_interval. Nothing is sent
to a broker. Stop with Ctrl-C; open trades are closed at the last mark.

Example:
  scalper paper -c scalper.yaml --plan today.yaml`,
	RunE: runPaper,
}

var (
	paperConfigPath string
	paperPlanPath   string
	paperEnv        string
	paperGran       string
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&paperConfigPath, "config", "c", "", "path to config file (defaults when empty)")
	paperCmd.Flags().StringVar(&paperPlanPath, "plan", "", "YAML setup plan (required)")
	paperCmd.Flags().StringVar(&paperEnv, "oanda-env", "practice", "OANDA environment: practice or live")
	paperCmd.Flags().StringVar(&paperGran, "granularity", "M1", "candle granularity")
	paperCmd.MarkFlagRequired("plan")
}

func runPaper(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	practice, err := oandaPractice(paperEnv)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, paperConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	interval, err := cfg.Engine.ParseInterval()
	if err != nil {
		return err
	}
	plan, err := replay.LoadPlan(paperPlanPath)
	if err != nil {
		return err
	}

	token := os.Getenv("OANDA_TOKEN")
	if token == "" {
		return fmt.Errorf("missing token: set OANDA_TOKEN")
	}
	feed := &oanda.Feed{Client: oanda.NewClient(token, practice), Granularity: oanda.Granularity(paperGran)}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	bus := events.New()
	if err := events.LogTrades(bus, log.WithField("component", "paper")); err != nil {
		return err
	}
	defer bus.Wait()

	opts := cfg.EngineOptions()
	opts.Rates = oanda.Rates{Feed: feed}
	opts.Journal = j
	opts.Listeners = []engine.Listener{bus}
	opts.Logger = log.WithField("component", "engine")

	eng, err := engine.New(cfg.EngineAccount(), opts)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, interval, feed) }()

	pending := plan.Setups
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closed := eng.CloseAll(ctx, time.Now())
			log.WithField("closed", len(closed)).Info("paper session stopped")
			if err := <-done; err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		case now := <-ticker.C:
			var later []replay.Setup
			for _, s := range pending {
				if s.Time.After(now) {
					later = append(later, s)
					continue
				}
				proposePaper(cmd, eng, feed, s)
			}
			pending = later
		}
	}
}

func proposePaper(cmd *cobra.Command, eng *engine.Engine, feed *oanda.Feed, s replay.Setup) {
	logger := log.WithFields(log.Fields{"instrument": s.Instrument, "direction": s.Direction.String()})

	window, err := feed.History(cmd.Context(), s.Instrument, replay.DefaultHistory)
	if err != nil {
		logger.WithError(err).Warn("no history for setup")
		return
	}
	setup, err := s.TradeSetup(window)
	if err != nil {
		logger.WithError(err).Warn("setup dropped")
		return
	}

	if _, err := eng.Propose(cmd.Context(), setup); err != nil {
		logger.WithError(err).Warn("setup refused")
	}
}
