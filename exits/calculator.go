package exits

import (
	"math"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

// Calculator derives stop and target levels for new positions. It is
// configured once and safe for concurrent use.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

func (c *Calculator) Config() Config { return c.cfg }

// ATR returns the smoothed true range over the configured period, or the
// fallback distance with degraded set when the history is too thin.
func (c *Calculator) ATR(candles []market.Candle, meta market.InstrumentMeta) (atr float64, samples int, degraded bool) {
	res := indicators.ComputeATR(candles, c.cfg.ATRPeriod)
	if !res.Usable() {
		return meta.FromPips(c.cfg.FallbackATRPips), res.Samples, true
	}
	return res.Value, res.Samples, false
}

// Compute returns exit levels for a position entered at entry. spread is a
// price distance. st may be nil, in which case only volatility is used.
func (c *Calculator) Compute(entry float64, dir market.Direction, meta market.InstrumentMeta,
	candles []market.Candle, spread float64, st *indicators.Structure) Levels {

	cfg := c.cfg
	atr, samples, degraded := c.ATR(candles, meta)

	sl := cfg.SLMultiplier * atr
	tp := cfg.TPMultiplier * atr
	buffer := cfg.BufferSpreadMultiplier*spread + cfg.BufferATRMultiplier*atr

	lv := Levels{
		Method:   MethodVolatility,
		Degraded: degraded,
		Meta: Meta{
			ATR:        atr,
			ATRSamples: samples,
			Buffer:     buffer,
		},
	}

	if st != nil {
		lv.Meta.SwingHigh = st.SwingHigh
		lv.Meta.SwingLow = st.SwingLow
		lv.Meta.Pivot = st.Pivot

		widened := false
		var swingStop float64
		switch dir {
		case market.Long:
			if st.SwingLow > 0 && st.SwingLow < entry {
				swingStop = entry - st.SwingLow + buffer
			}
		case market.Short:
			if st.SwingHigh > entry {
				swingStop = st.SwingHigh - entry + buffer
			}
		}
		if swingStop > sl {
			sl = swingStop
			widened = true
		}

		pulled := false
		if level, dist, ok := nearestTarget(entry, dir, tp, st.Targets()); ok {
			dist = math.Max(dist, cfg.StructureMinRR*sl)
			if dist < tp {
				tp = dist
				pulled = true
				lv.Meta.TargetLevel = level
			}
		}

		switch {
		case widened && pulled:
			lv.Method = MethodStructure
		case widened || pulled:
			lv.Method = MethodHybrid
		}
	}

	slPips := clamp(meta.ToPips(sl), cfg.MinSLPips, cfg.MaxSLPips)
	tpPips := clamp(meta.ToPips(tp), cfg.MinTPPips, cfg.MaxTPPips)

	if tpPips < cfg.MinRiskReward*slPips {
		tpPips = cfg.MinRiskReward * slPips
		if cfg.MaxTPPips > 0 && tpPips > cfg.MaxTPPips {
			tpPips = cfg.MaxTPPips
			slPips = cfg.MaxTPPips / cfg.MinRiskReward
		}
	}

	sign := dir.Sign()
	lv.StopLossPips = slPips
	lv.TakeProfitPips = tpPips
	lv.StopLoss = entry - sign*meta.FromPips(slPips)
	lv.TakeProfit = entry + sign*meta.FromPips(tpPips)
	lv.RiskReward = tpPips / slPips
	lv.Confidence = clamp((lv.RiskReward-1)/2, 0.3, 1.0)
	return lv
}

// nearestTarget finds the structure level closest to entry on the profit
// side that still sits inside the baseline target distance.
func nearestTarget(entry float64, dir market.Direction, baseline float64, levels []float64) (level, dist float64, ok bool) {
	for _, l := range levels {
		d := dir.Sign() * (l - entry)
		if d <= 0 || d >= baseline {
			continue
		}
		if !ok || d < dist {
			level, dist, ok = l, d, true
		}
	}
	return level, dist, ok
}

func clamp(v, lo, hi float64) float64 {
	if lo > 0 && v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}
