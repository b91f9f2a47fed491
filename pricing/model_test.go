package pricing

import (
	"math/rand"
	"testing"

	"github.com/rustyeddy/scalper/market"
	"github.com/stretchr/testify/assert"
)

var eurusd = market.Instruments["EUR_USD"]

func staticConfig() Config {
	cfg := DefaultConfig()
	cfg.DynamicSpread = false
	cfg.Slippage = false
	return cfg
}

func TestHourWindowContains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w    HourWindow
		hour int
		want bool
	}{
		{"inside", HourWindow{21, 23}, 22, true},
		{"start_inclusive", HourWindow{21, 23}, 21, true},
		{"end_exclusive", HourWindow{21, 23}, 23, false},
		{"wrap_late", HourWindow{23, 6}, 23, true},
		{"wrap_early", HourWindow{23, 6}, 3, true},
		{"wrap_outside", HourWindow{23, 6}, 12, false},
		{"empty", HourWindow{5, 5}, 5, false},
		{"normalizes", HourWindow{21, 23}, 46, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.w.Contains(tt.hour))
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	got := Config{Seed: 7, MaxSlippagePips: 1}.WithDefaults()
	def := DefaultConfig()

	assert.False(t, got.Slippage)
	assert.False(t, got.DynamicSpread)
	assert.Equal(t, int64(7), got.Seed)
	assert.Equal(t, 1.0, got.MaxSlippagePips)
	assert.Equal(t, def.NormalATRPips, got.NormalATRPips)
	assert.Equal(t, def.StopSigmaPips, got.StopSigmaPips)
	assert.Equal(t, def.Rollover, got.Rollover)

	kept := Config{Slippage: true, Rollover: HourWindow{20, 22}}.WithDefaults()
	assert.True(t, kept.Slippage)
	assert.Equal(t, HourWindow{20, 22}, kept.Rollover)
}

func TestSpreadPips(t *testing.T) {
	t.Parallel()

	m := NewModel(DefaultConfig(), rand.New(rand.NewSource(1)))
	normalATR := eurusd.FromPips(5)

	assert.InDelta(t, 1.0, m.SpreadPips(eurusd, 12, normalATR), 1e-12)
	assert.InDelta(t, 2.0, m.SpreadPips(eurusd, 21, normalATR), 1e-12)
	assert.InDelta(t, 1.5, m.SpreadPips(eurusd, 2, normalATR), 1e-12)
	// 16 pip ATR against an 8 pip reference doubles the spread
	assert.InDelta(t, 2.0, m.SpreadPips(eurusd, 12, eurusd.FromPips(16)), 1e-9)
	// capped at MaxVolatilityScale
	assert.InDelta(t, 3.0, m.SpreadPips(eurusd, 12, eurusd.FromPips(80)), 1e-9)

	static := NewModel(staticConfig(), nil)
	assert.InDelta(t, 1.0, static.SpreadPips(eurusd, 21, eurusd.FromPips(80)), 1e-12)
}

func TestSpreadOverride(t *testing.T) {
	t.Parallel()

	cfg := staticConfig()
	cfg.Spreads = map[string]float64{"EUR_USD": 0.6}
	m := NewModel(cfg, nil)
	assert.InDelta(t, 0.6, m.StaticSpreadPips(eurusd), 1e-12)
	assert.InDelta(t, 1.2, m.StaticSpreadPips(market.Instruments["USD_JPY"]), 1e-12)
}

func TestQuoteAndSides(t *testing.T) {
	t.Parallel()

	m := NewModel(staticConfig(), nil)
	q := m.Quote(1.1000, eurusd, 12, 0)

	assert.InDelta(t, 1.09995, q.Bid, 1e-12)
	assert.InDelta(t, 1.10005, q.Ask, 1e-12)
	assert.InDelta(t, 1.1000, q.Mid(), 1e-12)

	assert.Equal(t, q.Ask, EntryPrice(market.Long, q))
	assert.Equal(t, q.Bid, EntryPrice(market.Short, q))
	assert.Equal(t, q.Bid, MarkPrice(market.Long, q))
	assert.Equal(t, q.Ask, MarkPrice(market.Short, q))
}
