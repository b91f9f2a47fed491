package engine

import (
	"math"
	"time"

	"github.com/rustyeddy/scalper/exits"
	"github.com/rustyeddy/scalper/market"
)

// step is the outcome of evaluating one trade against one candle. It is
// computed on a copy and committed whole.
type step struct {
	next      ActiveTrade
	stale     bool
	stopMoved bool

	// Set when the trade closes this tick.
	status    Status
	exitLevel float64
	isStop    bool
}

func (s step) closes() bool { return s.status.Closed() }

// exitSide returns the exit-side extremes of a mid candle for dir: bids for a
// long, asks for a short.
func exitSide(dir market.Direction, c market.Candle, half float64) (open, low, high, last float64) {
	adj := -half
	if dir == market.Short {
		adj = half
	}
	return c.Open + adj, c.Low + adj, c.High + adj, c.Close + adj
}

// evaluate applies one monitor pass to t: tighten the stop, then check the
// stop and target intrabar against the tightened stop (stop first), then
// the timeout. Candles stamped before entry, or malformed, skip the price
// steps.
func evaluate(t ActiveTrade, c market.Candle, now time.Time, cfg exits.Config) step {
	s := step{next: t}
	n := &s.next
	dir := n.Direction

	s.stale = !c.Valid() || (!c.Time.IsZero() && c.Time.Before(n.EntryTime))

	if !s.stale {
		open, low, high, last := exitSide(dir, c, n.Spread/2)
		prev := n.StopLoss

		n.Highest = math.Max(n.Highest, c.High)
		if n.Lowest == 0 {
			n.Lowest = c.Low
		}
		n.Lowest = math.Min(n.Lowest, c.Low)

		trail := exits.TrailingStop(dir, n.Highest, n.Lowest, n.ATR, cfg.TrailMultiplier, n.StopLoss)
		be, _ := exits.BreakevenCheck(n.EntryPrice, last, dir, n.ATR, n.Spread,
			cfg.BreakevenTrigger, cfg.BreakevenCushion, n.StopLoss)
		decay := exits.TimeDecayedStop(n.EntryPrice, n.InitialStopDistance, dir,
			now.Sub(n.EntryTime), cfg.Timeout, cfg.DecayRate)
		n.StopLoss, s.stopMoved = exits.Tighten(dir, n.StopLoss, trail, be, decay)

		n.LastMark = last
		n.LastMid = c.Close
		n.LastUpdate = now

		switch dir {
		case market.Long:
			if low <= n.StopLoss {
				s.status, s.exitLevel, s.isStop = StatusClosedStopLoss, stopFill(dir, open, prev, n.StopLoss), true
			} else if high >= n.TakeProfit {
				s.status, s.exitLevel = StatusClosedTakeProfit, n.TakeProfit
			}
		case market.Short:
			if high >= n.StopLoss {
				s.status, s.exitLevel, s.isStop = StatusClosedStopLoss, stopFill(dir, open, prev, n.StopLoss), true
			} else if low <= n.TakeProfit {
				s.status, s.exitLevel = StatusClosedTakeProfit, n.TakeProfit
			}
		}
		if s.closes() {
			return s
		}
	}

	if cfg.Timeout > 0 && now.Sub(n.EntryTime) >= cfg.Timeout {
		s.status = StatusClosedTimeout
		s.exitLevel = n.LastMark
	}
	return s
}

// stopFill is the stop-out level for a candle. Only a gap through the stop
// that stood before this candle fills at the open; a stop raised during the
// candle fills at its own level.
func stopFill(dir market.Direction, open, prev, stop float64) float64 {
	if dir == market.Long && open <= prev {
		return math.Min(stop, open)
	}
	if dir == market.Short && open >= prev {
		return math.Max(stop, open)
	}
	return stop
}
