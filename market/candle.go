package market

import (
	"math"
	"time"
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	time.Time
	Volume float64
}

// Valid reports whether the candle can be used in calculations. Candles
// with non-finite or non-positive prices, or an inverted range, are ignored
// by every calculator rather than treated as errors.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return c.High >= c.Low
}

// Mid returns the candle close, which is the mid price for mid candles.
func (c Candle) Mid() float64 {
	return c.Close
}

// ValidCandles filters out malformed candles, preserving order.
func ValidCandles(candles []Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}
