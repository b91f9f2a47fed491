package exits

import (
	"errors"
	"fmt"
	"time"
)

// MinAllowedRiskReward is the floor below which a configuration is refused.
const MinAllowedRiskReward = 1.5

var ErrInvalidConfig = errors.New("invalid exit config")

type Config struct {
	ATRPeriod int `json:"atr_period" yaml:"atr_period"`

	SLMultiplier    float64 `json:"sl_multiplier" yaml:"sl_multiplier"`
	TPMultiplier    float64 `json:"tp_multiplier" yaml:"tp_multiplier"`
	TrailMultiplier float64 `json:"trail_multiplier" yaml:"trail_multiplier"`

	BufferSpreadMultiplier float64 `json:"buffer_spread_multiplier" yaml:"buffer_spread_multiplier"`
	BufferATRMultiplier    float64 `json:"buffer_atr_multiplier" yaml:"buffer_atr_multiplier"`

	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	DecayRate float64       `json:"decay_rate" yaml:"decay_rate"`

	// Breakeven moves the stop once price runs BreakevenTrigger×ATR in
	// favor; the new stop sits BreakevenCushion×spread past entry.
	BreakevenTrigger float64 `json:"breakeven_trigger" yaml:"breakeven_trigger"`
	BreakevenCushion float64 `json:"breakeven_cushion" yaml:"breakeven_cushion"`

	MinSLPips float64 `json:"min_sl_pips" yaml:"min_sl_pips"`
	MaxSLPips float64 `json:"max_sl_pips" yaml:"max_sl_pips"`
	MinTPPips float64 `json:"min_tp_pips" yaml:"min_tp_pips"`
	MaxTPPips float64 `json:"max_tp_pips" yaml:"max_tp_pips"`

	MinRiskReward  float64 `json:"min_risk_reward" yaml:"min_risk_reward"`
	StructureMinRR float64 `json:"structure_min_rr" yaml:"structure_min_rr"`

	// FallbackATRPips stands in for ATR when history is too short.
	FallbackATRPips float64 `json:"fallback_atr_pips" yaml:"fallback_atr_pips"`
}

func DefaultConfig() Config {
	return Config{
		ATRPeriod:              14,
		SLMultiplier:           0.8,
		TPMultiplier:           1.2,
		TrailMultiplier:        1.0,
		BufferSpreadMultiplier: 1.5,
		BufferATRMultiplier:    0.1,
		Timeout:                20 * time.Minute,
		DecayRate:              0.5,
		BreakevenTrigger:       0.6,
		BreakevenCushion:       0.5,
		MinSLPips:              3,
		MaxSLPips:              25,
		MinTPPips:              4.5,
		MaxTPPips:              40,
		MinRiskReward:          1.5,
		StructureMinRR:         1.2,
		FallbackATRPips:        8,
	}
}

func (c Config) Validate() error {
	bad := func(format string, a ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, a...)...)
	}
	switch {
	case c.ATRPeriod <= 0:
		return bad("atr_period must be positive")
	case c.SLMultiplier <= 0 || c.TPMultiplier <= 0:
		return bad("sl/tp multipliers must be positive")
	case c.TrailMultiplier <= 0:
		return bad("trail_multiplier must be positive")
	case c.BufferSpreadMultiplier < 0 || c.BufferATRMultiplier < 0:
		return bad("buffer multipliers cannot be negative")
	case c.Timeout <= 0:
		return bad("timeout must be positive")
	case c.DecayRate < 0:
		return bad("decay_rate cannot be negative")
	case c.BreakevenTrigger <= 0 || c.BreakevenCushion < 0:
		return bad("breakeven trigger must be positive and cushion non-negative")
	case c.MinSLPips <= 0 || c.MaxSLPips < c.MinSLPips:
		return bad("sl pip bounds %.1f..%.1f are invalid", c.MinSLPips, c.MaxSLPips)
	case c.MinTPPips <= 0 || c.MaxTPPips < c.MinTPPips:
		return bad("tp pip bounds %.1f..%.1f are invalid", c.MinTPPips, c.MaxTPPips)
	case c.MinRiskReward < MinAllowedRiskReward:
		return bad("min_risk_reward %.2f below %.2f", c.MinRiskReward, MinAllowedRiskReward)
	case c.MaxTPPips < c.MinRiskReward*c.MinSLPips:
		return bad("max_tp_pips %.1f cannot reach min_risk_reward at min_sl_pips", c.MaxTPPips)
	case c.StructureMinRR <= 0:
		return bad("structure_min_rr must be positive")
	case c.FallbackATRPips <= 0:
		return bad("fallback_atr_pips must be positive")
	}
	return nil
}
