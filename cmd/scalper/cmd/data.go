package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/oanda"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Market data tools",
}

var dataCandlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Download OANDA mid candles into a replay CSV",
	Long: `Download completed mid candles from the OANDA REST API and write them
in the time,instrument,open,high,low,close,volume layout replay reads.

The token comes from --token or OANDA_TOKEN (the --env dotenv file works too).

Example:
  scalper data candles --instrument EUR_USD --granularity M1 \
    --from 2024-03-04T00:00:00Z --to 2024-03-05T00:00:00Z -o eurusd-m1.csv`,
	RunE: runDataCandles,
}

var (
	dataToken       string
	dataEnv         string
	dataInstrument  string
	dataGranularity string
	dataFrom        string
	dataTo          string
	dataOut         string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCandlesCmd)

	f := dataCandlesCmd.Flags()
	f.StringVar(&dataToken, "token", "", "OANDA personal access token (or set OANDA_TOKEN)")
	f.StringVar(&dataEnv, "oanda-env", "practice", "OANDA environment: practice or live")
	f.StringVar(&dataInstrument, "instrument", "EUR_USD", "instrument, e.g. EUR_USD")
	f.StringVar(&dataGranularity, "granularity", "M1", "candle granularity: S5, M1, M5, M15, H1")
	f.StringVar(&dataFrom, "from", "", "RFC3339 start time (required)")
	f.StringVar(&dataTo, "to", "", "RFC3339 end time (required)")
	f.StringVarP(&dataOut, "output", "o", "candles.csv", "output CSV path")
	dataCandlesCmd.MarkFlagRequired("from")
	dataCandlesCmd.MarkFlagRequired("to")
}

// oandaPractice maps --oanda-env to the practice switch of oanda.NewClient.
func oandaPractice(env string) (bool, error) {
	switch env {
	case "practice":
		return true, nil
	case "live":
		return false, nil
	}
	return false, fmt.Errorf("unknown --oanda-env %q (use practice or live)", env)
}

func runDataCandles(cmd *cobra.Command, args []string) error {
	token := dataToken
	if token == "" {
		token = os.Getenv("OANDA_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("missing token: pass --token or set OANDA_TOKEN")
	}

	practice, err := oandaPractice(dataEnv)
	if err != nil {
		return err
	}

	g := oanda.Granularity(dataGranularity)
	if g.Duration() == 0 {
		return fmt.Errorf("unsupported granularity %q", dataGranularity)
	}

	from, err := time.Parse(time.RFC3339, dataFrom)
	if err != nil {
		return fmt.Errorf("bad --from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, dataTo)
	if err != nil {
		return fmt.Errorf("bad --to: %w", err)
	}

	client := oanda.NewClient(token, practice)
	candles, err := client.Range(cmd.Context(), dataInstrument, g, from, to)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	f, err := os.Create(dataOut)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := market.WriteCandlesCSV(f, dataInstrument, candles); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"instrument": dataInstrument,
		"candles":    len(candles),
		"output":     dataOut,
	}).Info("candles written")
	return nil
}
