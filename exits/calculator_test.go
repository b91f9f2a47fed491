package exits

import (
	"math/rand"
	"testing"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCandles(n int, mid, rng float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: mid, High: mid + rng/2, Low: mid - rng/2, Close: mid}
	}
	return out
}

func newCalc(t *testing.T, cfg Config) *Calculator {
	t.Helper()
	c, err := NewCalculator(cfg)
	require.NoError(t, err)
	return c
}

func TestCompute_VolatilityOnly(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	calc := newCalc(t, DefaultConfig())

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(30, 1.1, 0.0008), 0.0001, nil)

	assert.Equal(t, MethodVolatility, lv.Method)
	assert.False(t, lv.Degraded)
	assert.InDelta(t, 6.4, lv.StopLossPips, 1e-6)
	assert.InDelta(t, 9.6, lv.TakeProfitPips, 1e-6)
	assert.InDelta(t, 1.5, lv.RiskReward, 1e-6)
	assert.InDelta(t, 1.09936, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.10096, lv.TakeProfit, 1e-9)
	assert.InDelta(t, 0.3, lv.Confidence, 1e-9)
	assert.InDelta(t, 0.00064, lv.StopDistance(1.1000), 1e-9)
}

func TestCompute_ShortMirrorsLong(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	calc := newCalc(t, DefaultConfig())

	lv := calc.Compute(1.1000, market.Short, eur, flatCandles(30, 1.1, 0.0008), 0.0001, nil)
	assert.InDelta(t, 1.10064, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.09904, lv.TakeProfit, 1e-9)
}

func TestCompute_JPYPips(t *testing.T) {
	t.Parallel()

	jpy := market.Instruments["USD_JPY"]
	calc := newCalc(t, DefaultConfig())

	lv := calc.Compute(150.00, market.Long, jpy, flatCandles(30, 150, 0.08), 0.012, nil)
	assert.InDelta(t, 6.4, lv.StopLossPips, 1e-6)
	assert.InDelta(t, 149.936, lv.StopLoss, 1e-9)
}

func TestCompute_ThinHistoryFallsBack(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	calc := newCalc(t, DefaultConfig())

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(1, 1.1, 0.0008), 0.0001, nil)
	assert.True(t, lv.Degraded)
	assert.InDelta(t, 0.0008, lv.Meta.ATR, 1e-12)
	assert.InDelta(t, 6.4, lv.StopLossPips, 1e-6)
	assert.Equal(t, 0, lv.Meta.ATRSamples)
}

func TestCompute_StructureWidensStop(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	calc := newCalc(t, DefaultConfig())
	st := &indicators.Structure{SwingLow: 1.0990, SwingHigh: 1.1010, Pivot: 1.1005}

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(30, 1.1, 0.0008), 0.0001, st)

	// 10 pips to the swing plus a 2.3 pip buffer.
	assert.InDelta(t, 12.3, lv.StopLossPips, 1e-6)
	assert.InDelta(t, 18.45, lv.TakeProfitPips, 1e-6)
	assert.Equal(t, MethodHybrid, lv.Method)
	assert.InDelta(t, 0.00023, lv.Meta.Buffer, 1e-12)
	assert.Less(t, lv.StopLoss, st.SwingLow)

	short := calc.Compute(1.1000, market.Short, eur, flatCandles(30, 1.1, 0.0008), 0.0001, st)
	assert.InDelta(t, 1.10123, short.StopLoss, 1e-9)
	assert.Greater(t, short.StopLoss, st.SwingHigh)
}

func TestCompute_StructurePullsTarget(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	cfg := DefaultConfig()
	cfg.TPMultiplier = 2.0
	calc := newCalc(t, cfg)
	st := &indicators.Structure{R1: 1.1012, R2: 1.1030}

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(30, 1.1, 0.0008), 0.0001, st)
	assert.Equal(t, MethodHybrid, lv.Method)
	assert.InDelta(t, 1.1012, lv.Meta.TargetLevel, 1e-12)
	assert.InDelta(t, 12.0, lv.TakeProfitPips, 1e-6)
	assert.InDelta(t, 6.4, lv.StopLossPips, 1e-6)
}

func TestCompute_TargetNeverBelowRRFloor(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	calc := newCalc(t, DefaultConfig())
	// A level two pips away would collapse the target.
	st := &indicators.Structure{R1: 1.1002}

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(30, 1.1, 0.0008), 0.0001, st)
	assert.GreaterOrEqual(t, lv.RiskReward, 1.5-1e-9)
	assert.InDelta(t, 9.6, lv.TakeProfitPips, 1e-6)
}

func TestCompute_MaxTPShrinksStop(t *testing.T) {
	t.Parallel()

	eur := market.Instruments["EUR_USD"]
	cfg := DefaultConfig()
	cfg.MaxTPPips = 15
	calc := newCalc(t, cfg)
	st := &indicators.Structure{SwingLow: 1.0980}

	lv := calc.Compute(1.1000, market.Long, eur, flatCandles(30, 1.1, 0.0008), 0.0001, st)
	assert.InDelta(t, 15, lv.TakeProfitPips, 1e-9)
	assert.InDelta(t, 10, lv.StopLossPips, 1e-9)
	assert.InDelta(t, 1.5, lv.RiskReward, 1e-9)
}

func TestCompute_RiskRewardFloorHolds(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, DefaultConfig())
	rng := rand.New(rand.NewSource(7))
	names := []string{"EUR_USD", "USD_JPY", "GBP_USD"}

	for i := 0; i < 500; i++ {
		meta := market.Instruments[names[i%len(names)]]
		mid := 1.1
		if meta.IsJPY() {
			mid = 150
		}
		rangePips := 1 + rng.Float64()*40
		candles := flatCandles(2+rng.Intn(30), mid, meta.FromPips(rangePips))
		before := append([]market.Candle(nil), candles...)

		dir := market.Long
		if rng.Intn(2) == 0 {
			dir = market.Short
		}
		st, _ := indicators.FindStructure(candles, meta)
		st.SwingLow = mid - meta.FromPips(rng.Float64()*30)
		st.SwingHigh = mid + meta.FromPips(rng.Float64()*30)

		lv := calc.Compute(mid, dir, meta, candles, meta.FromPips(meta.SpreadPips), &st)

		require.GreaterOrEqual(t, lv.RiskReward, 1.5-1e-9)
		require.Greater(t, lv.StopLossPips, 0.0)
		require.Greater(t, dir.Sign()*(mid-lv.StopLoss), 0.0)
		require.Greater(t, dir.Sign()*(lv.TakeProfit-mid), 0.0)
		require.Equal(t, before, candles)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low_rr", func(c *Config) { c.MinRiskReward = 1.2 }},
		{"no_period", func(c *Config) { c.ATRPeriod = 0 }},
		{"inverted_sl", func(c *Config) { c.MaxSLPips = 1 }},
		{"tp_cannot_reach_rr", func(c *Config) { c.MinSLPips, c.MaxTPPips = 20, 25 }},
		{"no_timeout", func(c *Config) { c.Timeout = 0 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := NewCalculator(cfg)
			assert.Error(t, err)
		})
	}
}
