// Package pricing turns mid prices into the prices a fill would actually
// get: a spread around mid plus bounded random slippage.
package pricing

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rustyeddy/scalper/market"
)

// HourWindow is a UTC hour range [Start, End). A window with Start > End
// wraps midnight; Start == End is empty.
type HourWindow struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (w HourWindow) Contains(hour int) bool {
	hour = ((hour % 24) + 24) % 24
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return hour >= w.Start && hour < w.End
	default:
		return hour >= w.Start || hour < w.End
	}
}

type Config struct {
	DynamicSpread bool `json:"dynamic_spread" yaml:"dynamic_spread"`
	Slippage      bool `json:"slippage" yaml:"slippage"`

	// Seed for the slippage source; 0 seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed"`

	// Spreads overrides the instrument table spread, in pips.
	Spreads map[string]float64 `json:"spreads,omitempty" yaml:"spreads,omitempty"`

	Rollover     HourWindow `json:"rollover" yaml:"rollover"`
	LowLiquidity HourWindow `json:"low_liquidity" yaml:"low_liquidity"`

	// NormalATRPips is the ATR considered ordinary volatility.
	NormalATRPips      float64 `json:"normal_atr_pips" yaml:"normal_atr_pips"`
	MaxVolatilityScale float64 `json:"max_volatility_scale" yaml:"max_volatility_scale"`

	OrdinarySigmaPips float64 `json:"ordinary_sigma_pips" yaml:"ordinary_sigma_pips"`
	StopMeanPips      float64 `json:"stop_mean_pips" yaml:"stop_mean_pips"`
	StopSigmaPips     float64 `json:"stop_sigma_pips" yaml:"stop_sigma_pips"`
	MaxSlippagePips   float64 `json:"max_slippage_pips" yaml:"max_slippage_pips"`
}

const (
	RolloverMultiplier     = 2.0
	LowLiquidityMultiplier = 1.5
)

func DefaultConfig() Config {
	return Config{
		DynamicSpread:      true,
		Slippage:           true,
		Rollover:           HourWindow{Start: 21, End: 23},
		LowLiquidity:       HourWindow{Start: 23, End: 6},
		NormalATRPips:      8,
		MaxVolatilityScale: 3,
		OrdinarySigmaPips:  0.1,
		StopMeanPips:       0.5,
		StopSigmaPips:      0.4,
		MaxSlippagePips:    3,
	}
}

// WithDefaults fills the zero tuning values from DefaultConfig. The
// DynamicSpread and Slippage switches and the seed are kept as given. A
// window is filled only when both of its hours are zero.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Rollover == (HourWindow{}) {
		c.Rollover = d.Rollover
	}
	if c.LowLiquidity == (HourWindow{}) {
		c.LowLiquidity = d.LowLiquidity
	}
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&c.NormalATRPips, d.NormalATRPips)
	fill(&c.MaxVolatilityScale, d.MaxVolatilityScale)
	fill(&c.OrdinarySigmaPips, d.OrdinarySigmaPips)
	fill(&c.StopMeanPips, d.StopMeanPips)
	fill(&c.StopSigmaPips, d.StopSigmaPips)
	fill(&c.MaxSlippagePips, d.MaxSlippagePips)
	return c
}

// Model is safe for concurrent use; draws from the random source are
// serialized.
type Model struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewModel builds a price model. A nil rng is seeded from cfg.Seed (or the
// clock when the seed is zero); tests inject their own.
func NewModel(cfg Config, rng *rand.Rand) *Model {
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return &Model{cfg: cfg, rng: rng}
}

func (m *Model) Config() Config { return m.cfg }

// StaticSpreadPips is the table spread for the instrument.
func (m *Model) StaticSpreadPips(meta market.InstrumentMeta) float64 {
	if s, ok := m.cfg.Spreads[meta.Name]; ok && s > 0 {
		return s
	}
	return meta.SpreadPips
}

// SpreadPips returns the effective spread for the session hour and
// volatility.
func (m *Model) SpreadPips(meta market.InstrumentMeta, hour int, atr float64) float64 {
	s := m.StaticSpreadPips(meta)
	if !m.cfg.DynamicSpread {
		return s
	}

	switch {
	case m.cfg.Rollover.Contains(hour):
		s *= RolloverMultiplier
	case m.cfg.LowLiquidity.Contains(hour):
		s *= LowLiquidityMultiplier
	}
	return s * m.volatilityScale(meta, atr)
}

func (m *Model) volatilityScale(meta market.InstrumentMeta, atr float64) float64 {
	if m.cfg.NormalATRPips <= 0 || atr <= 0 {
		return 1
	}
	ratio := meta.ToPips(atr) / m.cfg.NormalATRPips
	if ratio <= 1 {
		return 1
	}
	if m.cfg.MaxVolatilityScale > 1 {
		ratio = math.Min(ratio, m.cfg.MaxVolatilityScale)
	}
	return ratio
}

// Quote centers the effective spread on mid.
func (m *Model) Quote(mid float64, meta market.InstrumentMeta, hour int, atr float64) market.Quote {
	half := meta.FromPips(m.SpreadPips(meta, hour, atr)) / 2
	return market.Quote{Bid: mid - half, Ask: mid + half}
}

// EntryPrice returns the side of the quote a new position fills on.
func EntryPrice(dir market.Direction, q market.Quote) float64 {
	if dir == market.Short {
		return q.Bid
	}
	return q.Ask
}

// MarkPrice returns the side a position is valued and exited on.
func MarkPrice(dir market.Direction, q market.Quote) float64 {
	if dir == market.Short {
		return q.Ask
	}
	return q.Bid
}
