package exits

import (
	"math"
	"time"

	"github.com/rustyeddy/scalper/market"
)

// improves reports whether candidate is a tighter stop than current.
func improves(dir market.Direction, candidate, current float64) bool {
	if current == 0 {
		return true
	}
	if dir == market.Short {
		return candidate < current
	}
	return candidate > current
}

// TrailingStop ratchets a chandelier stop: mult×ATR off the best price seen
// since entry. The result never loosens relative to current.
func TrailingStop(dir market.Direction, highest, lowest, atr, mult, current float64) float64 {
	if atr <= 0 || mult <= 0 {
		return current
	}
	var candidate float64
	switch dir {
	case market.Long:
		if highest <= 0 {
			return current
		}
		candidate = highest - mult*atr
		return math.Max(current, candidate)
	case market.Short:
		if lowest <= 0 {
			return current
		}
		candidate = lowest + mult*atr
		if current == 0 {
			return candidate
		}
		return math.Min(current, candidate)
	}
	return current
}

// BreakevenCheck moves the stop to entry plus a spread cushion once price
// has run trigger×ATR in favor. move is false when the stop stays put.
func BreakevenCheck(entry, price float64, dir market.Direction, atr, spread, trigger, cushion, current float64) (float64, bool) {
	if atr <= 0 {
		return current, false
	}
	excursion := dir.Sign() * (price - entry)
	if excursion < trigger*atr {
		return current, false
	}
	level := entry + dir.Sign()*cushion*spread
	if !improves(dir, level, current) {
		return current, false
	}
	return level, true
}

// TimeDecayedStop shrinks the stop distance exponentially as the trade ages
// toward its timeout.
func TimeDecayedStop(entry, initialDistance float64, dir market.Direction, elapsed, timeout time.Duration, lambda float64) float64 {
	frac := 1.0
	if timeout > 0 {
		frac = math.Min(math.Max(float64(elapsed)/float64(timeout), 0), 1)
	}
	dist := initialDistance * math.Exp(-lambda*frac)
	return entry - dir.Sign()*dist
}

// Tighten returns the tightest of the candidates that improves on current.
// The boolean reports whether the stop changed.
func Tighten(dir market.Direction, current float64, candidates ...float64) (float64, bool) {
	best := current
	for _, c := range candidates {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		if improves(dir, c, best) {
			best = c
		}
	}
	return best, best != current
}
