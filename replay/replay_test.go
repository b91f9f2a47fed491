package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/pricing"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type bar struct {
	at         time.Time
	o, h, l, c float64
}

// flatBars returns n bars of an 8 pip range around mid, one minute apart,
// the last one stamped at end.
func flatBars(n int, mid float64, end time.Time) []bar {
	out := make([]bar, n)
	for i := range out {
		out[i] = bar{at: end.Add(-time.Duration(n-1-i) * time.Minute), o: mid, h: mid + 0.0004, l: mid - 0.0004, c: mid}
	}
	return out
}

func candleCSV(instr string, bars []bar) string {
	var b strings.Builder
	b.WriteString("time,instrument,open,high,low,close,volume\n")
	for _, x := range bars {
		fmt.Fprintf(&b, "%s,%s,%.5f,%.5f,%.5f,%.5f,100\n", x.at.Format(time.RFC3339), instr, x.o, x.h, x.l, x.c)
	}
	return b.String()
}

func series(t *testing.T, instr string, bars []bar) market.Series {
	t.Helper()
	s, err := market.ReadCandlesCSV(strings.NewReader(candleCSV(instr, bars)))
	require.NoError(t, err)
	return s
}

func testConfig(j journal.Journal) Config {
	pc := pricing.DefaultConfig()
	pc.DynamicSpread = false
	pc.Slippage = false

	l := log.New()
	l.SetOutput(io.Discard)

	return Config{
		Account: engine.Account{ID: "replay", Currency: "USD", Balance: 10000},
		Options: engine.Options{Pricing: pc, Journal: j, Logger: l},
	}
}

func eurSetup(at time.Time) Setup {
	return Setup{Time: at, Instrument: "EUR_USD", Direction: market.Long, Confidence: 0.7, SpreadPips: 1}
}

func TestRun_TakeProfitJournaled(t *testing.T) {
	t.Parallel()

	bars := flatBars(31, 1.1000, t0)
	bars = append(bars,
		bar{at: t0.Add(time.Minute), o: 1.1008, h: 1.1012, l: 1.1007, c: 1.1011},
		bar{at: t0.Add(2 * time.Minute), o: 1.1011, h: 1.1012, l: 1.1010, c: 1.1011},
	)

	db, err := journal.NewSQLite(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	defer db.Close()

	res, err := Run(context.Background(), series(t, "EUR_USD", bars), Plan{Setups: []Setup{eurSetup(t0)}}, testConfig(db))
	require.NoError(t, err)

	assert.Equal(t, 33, res.Bars)
	assert.Equal(t, 33, res.Ticks)
	assert.Equal(t, 1, res.Proposed)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, string(engine.StatusClosedTakeProfit), tr.Reason)
	assert.True(t, tr.OpenTime.Equal(t0))
	assert.True(t, tr.CloseTime.Equal(t0.Add(time.Minute)))
	assert.InDelta(t, 1.10005, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 9.6, tr.Pips, 1e-4)
	assert.InDelta(t, 74.88, tr.RealizedPL, 0.011)

	assert.Equal(t, 1, res.Summary.Wins)
	assert.InDelta(t, 10000+tr.RealizedPL, res.Account.Balance, 1e-9)
	assert.Zero(t, res.Account.OpenTrades)

	stored, err := db.ListTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, tr.TradeID, stored[0].TradeID)
}

func TestRun_ClosesLeftoversAtEnd(t *testing.T) {
	t.Parallel()

	bars := flatBars(31, 1.1000, t0)
	for i := 1; i <= 3; i++ {
		bars = append(bars, bar{at: t0.Add(time.Duration(i) * time.Minute), o: 1.1000, h: 1.1001, l: 1.0999, c: 1.1000})
	}

	res, err := Run(context.Background(), series(t, "EUR_USD", bars), Plan{Setups: []Setup{eurSetup(t0)}}, testConfig(nil))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, string(engine.StatusClosedManual), res.Trades[0].Reason)
	assert.True(t, res.Trades[0].CloseTime.Equal(t0.Add(3*time.Minute)))
}

func TestRun_CountsRejections(t *testing.T) {
	t.Parallel()

	wide := eurSetup(t0)
	wide.SpreadPips = 6

	res, err := Run(context.Background(), series(t, "EUR_USD", flatBars(31, 1.1000, t0)), Plan{Setups: []Setup{wide}}, testConfig(nil))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Proposed)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Rejected["SPREAD_TOO_WIDE"])
}

func TestRun_SetupWaitsForInstrumentBar(t *testing.T) {
	t.Parallel()

	// The setup is due between bars and fires on the next one.
	bars := flatBars(31, 1.1000, t0)
	res, err := Run(context.Background(), series(t, "EUR_USD", bars), Plan{Setups: []Setup{eurSetup(t0.Add(-90 * time.Second))}}, testConfig(nil))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].OpenTime.Equal(t0.Add(-time.Minute)))
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), market.Series{}, Plan{}, testConfig(nil))
	assert.ErrorIs(t, err, ErrEmptySeries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, series(t, "EUR_USD", flatBars(5, 1.1, t0)), Plan{}, testConfig(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadPlan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`setups:
  - time: 2024-03-04T09:10:00Z
    instrument: USD_JPY
    direction: short
    confidence: 0.6
    risk_tier: high
    structure: true
  - time: 2024-03-04T09:00:00Z
    instrument: EUR_USD
    direction: buy
    confidence: 0.8
`), 0o644))

	p, err := LoadPlan(good)
	require.NoError(t, err)
	require.Len(t, p.Setups, 2)
	assert.Equal(t, "EUR_USD", p.Setups[0].Instrument)
	assert.Equal(t, market.Long, p.Setups[0].Direction)
	assert.Equal(t, market.Short, p.Setups[1].Direction)
	assert.Equal(t, engine.TierHigh, p.Setups[1].RiskTier)
	assert.True(t, p.Setups[1].Structure)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("setups:\n  - instrument: XAU_USD\n    direction: long\n"), 0o644))
	_, err = LoadPlan(bad)
	assert.Error(t, err)

	_, err = LoadPlan(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
