package indicators

import (
	"math"
	"sort"

	"github.com/rustyeddy/scalper/market"
)

// Structure holds the price-structure levels around the current price.
type Structure struct {
	SwingHigh float64
	SwingLow  float64

	// Classic floor pivots from the window's high, low and last close.
	Pivot float64
	R1    float64
	R2    float64
	S1    float64
	S2    float64

	// RoundNumbers are the nearest whole and half figures.
	RoundNumbers []float64
}

// Targets returns every candidate target level in ascending order.
func (s Structure) Targets() []float64 {
	out := make([]float64, 0, 5+len(s.RoundNumbers))
	for _, v := range []float64{s.S2, s.S1, s.Pivot, s.R1, s.R2} {
		if v > 0 {
			out = append(out, v)
		}
	}
	out = append(out, s.RoundNumbers...)
	sort.Float64s(out)
	return out
}

// SwingStrength is the number of candles on each side a swing point must
// exceed.
const SwingStrength = 2

// FindStructure derives swing and pivot levels from the candle window. The
// boolean is false when fewer than three valid candles are available.
func FindStructure(candles []market.Candle, meta market.InstrumentMeta) (Structure, bool) {
	cs := market.ValidCandles(candles)
	if len(cs) < 3 {
		return Structure{}, false
	}

	hi, lo := cs[0].High, cs[0].Low
	for _, c := range cs {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	last := cs[len(cs)-1].Close

	s := Structure{SwingHigh: hi, SwingLow: lo}

	// Most recent fractal swing points win over window extremes.
	for i := len(cs) - 1 - SwingStrength; i >= SwingStrength; i-- {
		if isSwingHigh(cs, i) {
			s.SwingHigh = cs[i].High
			break
		}
	}
	for i := len(cs) - 1 - SwingStrength; i >= SwingStrength; i-- {
		if isSwingLow(cs, i) {
			s.SwingLow = cs[i].Low
			break
		}
	}

	s.Pivot = (hi + lo + last) / 3
	s.R1 = 2*s.Pivot - lo
	s.S1 = 2*s.Pivot - hi
	s.R2 = s.Pivot + (hi - lo)
	s.S2 = s.Pivot - (hi - lo)
	s.RoundNumbers = RoundNumbers(last, meta, 50, 2)

	return s, true
}

func isSwingHigh(cs []market.Candle, i int) bool {
	for k := 1; k <= SwingStrength; k++ {
		if cs[i].High <= cs[i-k].High || cs[i].High <= cs[i+k].High {
			return false
		}
	}
	return true
}

func isSwingLow(cs []market.Candle, i int) bool {
	for k := 1; k <= SwingStrength; k++ {
		if cs[i].Low >= cs[i-k].Low || cs[i].Low >= cs[i+k].Low {
			return false
		}
	}
	return true
}

// RoundNumbers returns count levels on each side of price spaced stepPips
// apart, aligned to multiples of the step.
func RoundNumbers(price float64, meta market.InstrumentMeta, stepPips float64, count int) []float64 {
	if price <= 0 || stepPips <= 0 || count <= 0 {
		return nil
	}
	step := meta.FromPips(stepPips)
	base := math.Floor(price/step) * step

	out := make([]float64, 0, 2*count)
	for i := -(count - 1); i <= count; i++ {
		lvl := base + float64(i)*step
		if lvl > 0 {
			out = append(out, lvl)
		}
	}
	return out
}
