// Package replay drives the execution engine offline from a candle file
// and a plan of trade setups, on a simulated clock.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultHistory is the number of bars handed to the engine with each
// setup.
const DefaultHistory = 50

var ErrEmptySeries = errors.New("replay: no candles")

// Setup is one planned proposal. It fires on the first bar at or after
// Time for its instrument.
type Setup struct {
	Time       time.Time        `yaml:"time"`
	Instrument string           `yaml:"instrument"`
	Direction  market.Direction `yaml:"direction"`
	Confidence float64          `yaml:"confidence"`
	RiskTier   engine.RiskTier  `yaml:"risk_tier"`

	// SpreadPips overrides the pricing model's spread when positive.
	SpreadPips float64 `yaml:"spread_pips"`

	// Structure derives swing and pivot levels from the history window.
	Structure bool `yaml:"structure"`
}

// Plan is the YAML setup file:
//
//	setups:
//	  - time: 2026-01-05T08:00:00Z
//	    instrument: EUR_USD
//	    direction: long
//	    confidence: 0.7
//	    risk_tier: standard
type Plan struct {
	Setups []Setup `yaml:"setups"`
}

// LoadPlan reads a YAML plan and orders it by time.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	for i, s := range p.Setups {
		if _, err := market.Lookup(s.Instrument); err != nil {
			return Plan{}, fmt.Errorf("plan setup %d: %w", i+1, err)
		}
		if !s.Direction.Valid() {
			return Plan{}, fmt.Errorf("plan setup %d: direction is required", i+1)
		}
	}
	sort.SliceStable(p.Setups, func(i, j int) bool { return p.Setups[i].Time.Before(p.Setups[j].Time) })
	return p, nil
}

// Config is what a replay run needs besides the data.
type Config struct {
	Account engine.Account
	Options engine.Options

	// History defaults to DefaultHistory.
	History int
}

// Result is the outcome of a replay run.
type Result struct {
	Bars       int
	Ticks      int
	Proposed   int
	Rejected   map[string]int
	Trades     []journal.TradeRecord
	Summary    journal.Summary
	Account    engine.Account
	Start, End time.Time
}

// Clock is a settable time source for the engine.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// collector records engine events for the result.
type collector struct {
	mu       sync.Mutex
	trades   []journal.TradeRecord
	rejected map[string]int
}

func (c *collector) OnTradeOpened(engine.ActiveTrade) {}

func (c *collector) OnTradeClosed(ct engine.ClosedTrade) {
	c.mu.Lock()
	c.trades = append(c.trades, ct.Record())
	c.mu.Unlock()
}

func (c *collector) OnRejected(_ engine.TradeSetup, a engine.Admission) {
	c.mu.Lock()
	c.rejected[string(a.Reason)]++
	c.mu.Unlock()
}

// Run replays series bar by bar. On each timestamp the engine first
// monitors open trades against the new bars, then takes any setups due,
// entering at the bar's close. Trades still open after the last bar are
// closed manually.
func Run(ctx context.Context, series market.Series, plan Plan, cfg Config) (Result, error) {
	times := timeline(series)
	if len(times) == 0 {
		return Result{}, ErrEmptySeries
	}
	history := cfg.History
	if history <= 0 {
		history = DefaultHistory
	}

	clock := &Clock{}
	clock.Set(times[0])
	col := &collector{rejected: map[string]int{}}

	opts := cfg.Options
	opts.Clock = clock.Now
	opts.Listeners = append(append([]engine.Listener(nil), opts.Listeners...), col)
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	eng, err := engine.New(cfg.Account, opts)
	if err != nil {
		return Result{}, err
	}

	store := market.NewCandleStore()
	pos := make(map[string]int, len(series)) // next unread bar per instrument
	pending := plan.Setups
	res := Result{Start: times[0], End: times[len(times)-1]}

	for _, now := range times {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		clock.Set(now)

		for _, instr := range series.Instruments() {
			bars := series[instr]
			i := pos[instr]
			for i < len(bars) && bars[i].Time.Before(now) {
				i++
			}
			if i < len(bars) && bars[i].Time.Equal(now) {
				store.Set(instr, bars[i])
				pos[instr] = i + 1
				res.Bars++
			} else {
				pos[instr] = i
				store.Delete(instr)
			}
		}

		eng.MonitorTick(ctx, now, store)
		res.Ticks++

		var later []Setup
		for _, s := range pending {
			if s.Time.After(now) {
				later = append(later, s)
				continue
			}
			if _, err := store.LatestCandle(ctx, s.Instrument); err != nil {
				// No bar on this timestamp; wait for the instrument to print.
				later = append(later, s)
				continue
			}
			n := pos[s.Instrument]
			window := series[s.Instrument][max(0, n-history):n]
			setup, err := s.TradeSetup(window)
			if err != nil {
				return res, err
			}
			res.Proposed++
			if _, err := eng.Propose(ctx, setup); err != nil {
				logger.WithFields(log.Fields{
					"instrument": s.Instrument,
					"time":       now,
				}).WithError(err).Warn("replay setup refused")
			}
		}
		pending = later
	}

	eng.CloseAll(ctx, res.End)
	if len(pending) > 0 {
		logger.WithField("count", len(pending)).Info("setups never reached a bar")
	}

	col.mu.Lock()
	res.Trades = append([]journal.TradeRecord(nil), col.trades...)
	res.Rejected = col.rejected
	col.mu.Unlock()

	res.Summary = journal.Summarize(res.Trades)
	res.Account = eng.Account()
	return res, nil
}

// TradeSetup builds the engine proposal for s over the history window.
func (s Setup) TradeSetup(window []market.Candle) (engine.TradeSetup, error) {
	meta, err := market.Lookup(s.Instrument)
	if err != nil {
		return engine.TradeSetup{}, err
	}
	ts := engine.TradeSetup{
		Instrument: s.Instrument,
		Direction:  s.Direction,
		Confidence: s.Confidence,
		RiskTier:   s.RiskTier,
		Candles:    window,
	}
	if s.SpreadPips > 0 {
		ts.Spread = meta.FromPips(s.SpreadPips)
	}
	if s.Structure {
		if st, ok := indicators.FindStructure(window, meta); ok {
			ts.Structure = &st
		}
	}
	return ts, nil
}

// timeline merges every instrument's bar times in order.
func timeline(series market.Series) []time.Time {
	seen := map[int64]bool{}
	var out []time.Time
	for _, bars := range series {
		for _, c := range bars {
			k := c.Time.UnixNano()
			if !seen[k] {
				seen[k] = true
				out = append(out, c.Time)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
