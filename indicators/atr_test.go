package indicators

import (
	"testing"

	"github.com/rustyeddy/scalper/market"
	"github.com/stretchr/testify/assert"
)

// flatCandles returns candles with a constant range and no gaps, so every
// true range equals rng.
func flatCandles(n int, mid, rng float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: mid, High: mid + rng/2, Low: mid - rng/2, Close: mid}
	}
	return out
}

func TestTrueRange(t *testing.T) {
	t.Parallel()

	prev := market.Candle{Open: 1.1, High: 1.1010, Low: 1.0990, Close: 1.1000}

	tests := []struct {
		name string
		cur  market.Candle
		want float64
	}{
		{"inside", market.Candle{Open: 1.1, High: 1.1005, Low: 1.0995, Close: 1.1}, 0.0010},
		{"gap_up", market.Candle{Open: 1.1020, High: 1.1030, Low: 1.1020, Close: 1.1025}, 0.0030},
		{"gap_down", market.Candle{Open: 1.0980, High: 1.0985, Low: 1.0970, Close: 1.0975}, 0.0030},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, TrueRange(tt.cur, prev), 1e-12)
		})
	}
}

func TestComputeATR_ConstantRange(t *testing.T) {
	t.Parallel()

	res := ComputeATR(flatCandles(30, 1.1, 0.0008), 14)
	assert.True(t, res.Warm)
	assert.True(t, res.Usable())
	assert.Equal(t, 29, res.Samples)
	assert.InDelta(t, 0.0008, res.Value, 1e-12)
}

func TestComputeATR_ShortHistory(t *testing.T) {
	t.Parallel()

	res := ComputeATR(flatCandles(1, 1.1, 0.0008), 14)
	assert.False(t, res.Usable())
	assert.Equal(t, 0, res.Samples)

	res = ComputeATR(flatCandles(3, 1.1, 0.0008), 14)
	assert.True(t, res.Usable())
	assert.False(t, res.Warm)
	assert.InDelta(t, 0.0008, res.Value, 1e-12)
}

func TestComputeATR_SkipsMalformed(t *testing.T) {
	t.Parallel()

	cs := flatCandles(5, 1.1, 0.0008)
	cs[2] = market.Candle{}
	res := ComputeATR(cs, 3)
	assert.Equal(t, 3, res.Samples)
	assert.InDelta(t, 0.0008, res.Value, 1e-12)
}

func TestATR_ReactsToVolatility(t *testing.T) {
	t.Parallel()

	a := NewATR(3)
	assert.Equal(t, "ATR(3)", a.Name())
	assert.Equal(t, 4, a.Warmup())

	for _, c := range flatCandles(5, 1.1, 0.0010) {
		a.Update(c)
	}
	before := a.Value()
	a.Update(market.Candle{Open: 1.1, High: 1.1030, Low: 1.0990, Close: 1.1})
	assert.Greater(t, a.Value(), before)

	// alpha = 0.5 for period 3
	assert.InDelta(t, 0.5*0.0040+0.5*before, a.Value(), 1e-12)

	a.Reset()
	assert.False(t, a.Ready())
	assert.Equal(t, 0.0, a.Value())
}
