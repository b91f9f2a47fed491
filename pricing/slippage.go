package pricing

import (
	"math"

	"github.com/rustyeddy/scalper/market"
)

// ApplySlippage offsets a fill price by a random draw. side is the side of
// the fill itself: Long for a buy, Short for a sell. A positive draw is
// adverse (buys higher, sells lower).
//
// Ordinary fills are zero-mean; stop fills carry an adverse mean and a
// wider sigma. Draws are clipped to MaxSlippagePips and price improvement
// is capped at half the spread so a fill never crosses mid.
func (m *Model) ApplySlippage(price float64, side market.Direction, spreadPips float64, meta market.InstrumentMeta, atr float64, isStop bool) float64 {
	if !m.cfg.Slippage {
		return price
	}

	mean, sigma := 0.0, m.cfg.OrdinarySigmaPips
	if isStop {
		mean, sigma = m.cfg.StopMeanPips, m.cfg.StopSigmaPips
	}
	sigma *= m.volatilityScale(meta, atr)

	m.mu.Lock()
	draw := mean + sigma*m.rng.NormFloat64()
	m.mu.Unlock()

	if limit := m.cfg.MaxSlippagePips; limit > 0 {
		draw = math.Max(-limit, math.Min(limit, draw))
	}
	if draw < 0 {
		draw = math.Max(draw, -spreadPips/2)
	}
	return price + side.Sign()*meta.FromPips(draw)
}
