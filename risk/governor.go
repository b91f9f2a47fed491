package risk

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Governor is the session-wide admission gate. It is not safe for
// concurrent use: the owner must serialize Admit, RecordOpen and
// RecordClose behind one lock so every check sees the counters the
// following mutation will change.
type Governor struct {
	policy Policy
	state  DailyState
}

func NewGovernor(p Policy) *Governor {
	return &Governor{policy: p}
}

func (g *Governor) Policy() Policy { return g.policy }

// State returns a copy of the current daily state.
func (g *Governor) State() DailyState { return g.state }

// Restore replaces the daily state, e.g. from the journal at startup. A
// snapshot from an earlier day is discarded by the next rollover.
func (g *Governor) Restore(s DailyState) { g.state = s }

func (g *Governor) day(now time.Time) string {
	loc := g.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(dateLayout)
}

// rollover resets the state when the calendar date changes. It reports
// whether a reset happened.
func (g *Governor) rollover(now time.Time) bool {
	d := g.day(now)
	if g.state.Date == d {
		return false
	}
	g.state = DailyState{Date: d}
	return true
}

// Admit decides whether a new position may be opened given openCount
// positions already open. The checks run in a fixed order; the first
// failing check names the rejection.
func (g *Governor) Admit(now time.Time, openCount int) Decision {
	g.rollover(now)
	p := g.policy
	s := &g.state

	if p.MaxTradesPerDay > 0 && s.TradesTaken >= p.MaxTradesPerDay {
		return reject(ReasonMaxTradesPerDay,
			fmt.Sprintf("trades today %d >= max %d", s.TradesTaken, p.MaxTradesPerDay))
	}
	if p.MaxOpenTrades > 0 && openCount >= p.MaxOpenTrades {
		return reject(ReasonMaxOpenTrades,
			fmt.Sprintf("open trades %d >= max %d", openCount, p.MaxOpenTrades))
	}
	if p.MaxDailyLossPct > 0 && s.PnLPct <= -p.MaxDailyLossPct {
		return reject(ReasonDailyLossLimit,
			fmt.Sprintf("day pnl %.2f%% <= limit -%.2f%%", 100*s.PnLPct, 100*p.MaxDailyLossPct))
	}
	if now.Before(s.PauseUntil) {
		return reject(ReasonPaused,
			fmt.Sprintf("paused until %s", s.PauseUntil.Format(time.RFC3339)))
	}
	if p.MaxConsecutiveLosses > 0 && s.ConsecutiveLosses >= p.MaxConsecutiveLosses {
		// The streak is consumed by the pause so admission resumes once
		// the window elapses.
		s.PauseUntil = now.Add(p.PauseWindow)
		n := s.ConsecutiveLosses
		s.ConsecutiveLosses = 0
		return reject(ReasonConsecutiveLosses,
			fmt.Sprintf("%d consecutive losses, paused until %s", n, s.PauseUntil.Format(time.RFC3339)))
	}
	return allow()
}

// RecordOpen counts an admitted trade against today's limit.
func (g *Governor) RecordOpen(now time.Time) {
	g.rollover(now)
	g.state.TradesTaken++
}

// RecordClose folds a closed trade's result into the day. pnlPct is the
// realized P/L as a fraction of equity; zero is a scratch and leaves the
// streak alone.
func (g *Governor) RecordClose(now time.Time, pnlPct float64) {
	g.rollover(now)
	s := &g.state

	switch {
	case pnlPct > 0:
		s.Wins++
		s.ConsecutiveLosses = 0
	case pnlPct < 0:
		s.Losses++
		s.ConsecutiveLosses++
	}
	s.PnLPct += pnlPct
}

// CheckSpread gates admission on the current spread.
func (p Policy) CheckSpread(spreadPips float64) Decision {
	if p.MaxSpreadPips > 0 && spreadPips > p.MaxSpreadPips {
		return reject(ReasonSpreadTooWide,
			fmt.Sprintf("spread %.2f pips > max %.2f", spreadPips, p.MaxSpreadPips))
	}
	return allow()
}
