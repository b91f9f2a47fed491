package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scalper/market"
)

// ATR is a streaming Average True Range smoothed with an exponential
// moving average (alpha = 2/(period+1)). The EMA is seeded with the simple
// average of the first period true ranges, or of however many have been
// seen when fewer are available.
type ATR struct {
	period      int
	alpha       float64
	atr         float64
	count       int
	warmupSum   float64
	prevCandle  market.Candle
	hasPrevious bool
}

var _ Indicator = (*ATR)(nil)

// NewATR creates a new Average True Range indicator with the given period
func NewATR(period int) *ATR {
	if period <= 0 {
		period = 1
	}
	return &ATR{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	// Need period+1 candles because TR requires previous candle
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrevious = false
}

// Update ignores malformed candles.
func (a *ATR) Update(c market.Candle) {
	if !c.Valid() {
		return
	}
	if !a.hasPrevious {
		a.prevCandle = c
		a.hasPrevious = true
		return
	}

	tr := TrueRange(c, a.prevCandle)
	a.count++
	if a.count <= a.period {
		a.warmupSum += tr
		a.atr = a.warmupSum / float64(a.count)
	} else {
		a.atr = a.alpha*tr + (1-a.alpha)*a.atr
	}
	a.prevCandle = c
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

// Samples is the number of true ranges folded into the value.
func (a *ATR) Samples() int {
	return a.count
}

func (a *ATR) Value() float64 {
	return a.atr
}

// ATRResult is the outcome of a batch ATR calculation.
type ATRResult struct {
	Value   float64
	Samples int

	// Warm is false when fewer than period true ranges were available; the
	// value is still usable but less smoothed.
	Warm bool
}

// Usable reports whether at least one true range was computed.
func (r ATRResult) Usable() bool {
	return r.Samples > 0 && r.Value > 0
}

// ComputeATR runs the streaming ATR across candles. Fewer than two valid
// candles yields a zero-sample result the caller must replace with a
// fallback distance.
func ComputeATR(candles []market.Candle, period int) ATRResult {
	a := NewATR(period)
	for _, c := range candles {
		a.Update(c)
	}
	return ATRResult{
		Value:   a.Value(),
		Samples: a.Samples(),
		Warm:    a.Ready(),
	}
}

// TrueRange calculates the True Range for a candle given the previous candle
func TrueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}
