package engine

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
)

// TickReport summarizes one monitor pass.
type TickReport struct {
	Time      time.Time
	Evaluated int
	Skipped   int // no candle this tick
	Stale     int // candle predates entry or is malformed
	Tightened int
	Closed    []ClosedTrade
}

type tickTarget struct {
	id         string
	instrument string
}

// MonitorTick evaluates every open trade against the feed's latest candle.
// Candles are fetched without the lock; each trade is then evaluated and
// committed, or closed, under it. A feed error leaves that trade untouched.
func (e *Engine) MonitorTick(ctx context.Context, now time.Time, feed market.Feed) TickReport {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	rep := TickReport{Time: now}

	e.mu.Lock()
	targets := make([]tickTarget, 0, len(e.trades))
	for _, t := range e.sortedLocked() {
		targets = append(targets, tickTarget{id: t.ID, instrument: t.Instrument})
	}
	e.mu.Unlock()

	if len(targets) == 0 {
		return rep
	}

	candles := make(map[string]market.Candle)
	failed := make(map[string]bool)
	for _, tg := range targets {
		if _, ok := candles[tg.instrument]; ok || failed[tg.instrument] {
			continue
		}
		c, err := feed.LatestCandle(ctx, tg.instrument)
		if err != nil {
			failed[tg.instrument] = true
			entry := e.log.WithField("instrument", tg.instrument).WithError(err)
			if errors.Is(err, market.ErrDataUnavailable) {
				entry.Debug("no candle this tick")
			} else {
				entry.Warn("feed error")
			}
			continue
		}
		candles[tg.instrument] = c
	}

	cfg := e.calc.Config()
	var snaps []journal.RiskSnapshot

	e.mu.Lock()
	for _, tg := range targets {
		t, ok := e.trades[tg.id]
		if !ok {
			// Closed since the snapshot.
			continue
		}
		c, ok := candles[tg.instrument]
		if !ok {
			rep.Skipped++
			continue
		}

		s := evaluate(*t, c, now, cfg)
		rep.Evaluated++
		if s.stale {
			rep.Stale++
		}
		if s.stopMoved {
			rep.Tightened++
		}

		*t = s.next
		if s.closes() {
			ct, snap := e.closeLocked(t, s.exitLevel, now, s.status, s.isStop)
			rep.Closed = append(rep.Closed, ct)
			snaps = append(snaps, snap)
		}
	}
	e.mu.Unlock()

	for i := range rep.Closed {
		e.afterClose(rep.Closed[i], snaps[i])
	}

	if rep.Skipped > 0 || len(rep.Closed) > 0 {
		e.log.WithFields(log.Fields{
			"evaluated": rep.Evaluated,
			"skipped":   rep.Skipped,
			"closed":    len(rep.Closed),
		}).Debug("monitor tick")
	}
	return rep
}

// Run ticks the monitor every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration, feed market.Feed) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.WithField("interval", interval).Info("monitor started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			e.MonitorTick(ctx, e.clock(), feed)
		}
	}
}
