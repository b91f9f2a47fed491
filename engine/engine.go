package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/scalper/exits"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/pkg/id"
	"github.com/rustyeddy/scalper/pricing"
	"github.com/rustyeddy/scalper/risk"
)

var (
	ErrInvalidSetup = errors.New("invalid trade setup")
	ErrNoPrice      = errors.New("no usable price in setup")
)

// Sizing bounds the unit count of new positions.
type Sizing struct {
	LotStep  float64
	MinUnits float64
	MaxUnits float64
}

func DefaultSizing() Sizing {
	return Sizing{LotStep: 1000, MinUnits: 1000, MaxUnits: 1_000_000}
}

// Options wires the engine's collaborators. Zero values select defaults;
// Journal, Rates and Listeners are optional.
type Options struct {
	Exits   exits.Config
	Policy  risk.Policy
	Pricing pricing.Config
	Sizing  Sizing

	// Rand drives slippage draws; nil seeds from Pricing.Seed.
	Rand *rand.Rand

	Rates     market.RateSource
	Journal   journal.Journal
	Listeners []Listener
	Logger    log.FieldLogger

	Clock func() time.Time
	NewID func(time.Time) string
}

// Engine owns the open trades, the account balance and the risk governor.
// mu guards all three; collaborator calls (rate source, feed, journal,
// listeners) are made without it. tickMu keeps monitor ticks from
// overlapping.
type Engine struct {
	mu       sync.Mutex
	tickMu   sync.Mutex
	acct     Account
	trades   map[string]*ActiveTrade
	governor *risk.Governor

	calc    *exits.Calculator
	model   *pricing.Model
	sizing  Sizing
	rates   market.RateSource
	journal journal.Journal
	listen  []Listener
	log     log.FieldLogger
	clock   func() time.Time
	newID   func(time.Time) string
}

func New(acct Account, opts Options) (*Engine, error) {
	if opts.Exits == (exits.Config{}) {
		opts.Exits = exits.DefaultConfig()
	}
	calc, err := exits.NewCalculator(opts.Exits)
	if err != nil {
		return nil, err
	}
	if opts.Policy == (risk.Policy{}) {
		opts.Policy = risk.DefaultPolicy()
	}
	opts.Pricing = opts.Pricing.WithDefaults()
	if opts.Sizing == (Sizing{}) {
		opts.Sizing = DefaultSizing()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = id.NewAt
	}
	if acct.Currency == "" {
		acct.Currency = opts.Policy.AccountBaseCurrency
	}
	if acct.Leverage <= 0 {
		acct.Leverage = 50
	}
	if acct.Balance <= 0 {
		return nil, fmt.Errorf("%w: account balance must be positive", ErrInvalidSetup)
	}

	return &Engine{
		acct:     acct,
		trades:   make(map[string]*ActiveTrade),
		governor: risk.NewGovernor(opts.Policy),
		calc:     calc,
		model:    pricing.NewModel(opts.Pricing, opts.Rand),
		sizing:   opts.Sizing,
		rates:    opts.Rates,
		journal:  opts.Journal,
		listen:   opts.Listeners,
		log:      opts.Logger,
		clock:    opts.Clock,
		newID:    opts.NewID,
	}, nil
}

// Propose asks for a new position. Rejections by the risk governor are
// returned as an Admission with a Reason, not as an error; errors mean the
// setup itself is unusable.
func (e *Engine) Propose(ctx context.Context, setup TradeSetup) (Admission, error) {
	meta, err := market.Lookup(setup.Instrument)
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	if !setup.Direction.Valid() {
		return Admission{}, fmt.Errorf("%w: direction %d", ErrInvalidSetup, setup.Direction)
	}
	if setup.Confidence < 0 || setup.Confidence > 1 {
		return Admission{}, fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalidSetup, setup.Confidence)
	}
	if !setup.RiskTier.Valid() {
		return Admission{}, fmt.Errorf("%w: risk tier %q", ErrInvalidSetup, setup.RiskTier)
	}
	valid := market.ValidCandles(setup.Candles)
	if len(valid) == 0 {
		return Admission{}, fmt.Errorf("%s: %w", setup.Instrument, ErrNoPrice)
	}
	mid := valid[len(valid)-1].Close
	now := e.clock()

	t := e.prepare(ctx, setup, meta, mid, now)
	spreadPips := meta.ToPips(t.Spread)

	e.mu.Lock()
	dec := e.governor.Policy().CheckSpread(spreadPips)
	if dec.Allowed {
		dec = e.governor.Admit(now, len(e.trades))
	}
	if dec.Allowed {
		if limit := e.governor.Policy().MaxOpenTrades; limit > 0 && len(e.trades) >= limit {
			e.log.WithField("open", len(e.trades)).Warn("admission would exceed open trade cap")
			dec = risk.Decision{Reason: risk.ReasonMaxOpenTrades, Msg: "open trade cap"}
		}
	}
	if dec.Allowed {
		t.ID = e.newID(now)
		for e.trades[t.ID] != nil {
			t.ID = e.newID(now)
		}
		t.Status = StatusOpen
		e.trades[t.ID] = &t
		e.governor.RecordOpen(now)
	}
	e.mu.Unlock()

	fields := log.Fields{
		"instrument": setup.Instrument,
		"direction":  setup.Direction.String(),
		"spread":     fmt.Sprintf("%.1f", spreadPips),
	}
	if !dec.Allowed {
		adm := Admission{Reason: dec.Reason, Msg: dec.Msg}
		e.log.WithFields(fields).WithField("reason", dec.Reason).Info("proposal rejected")
		for _, l := range e.listen {
			l.OnRejected(setup, adm)
		}
		return adm, nil
	}

	e.log.WithFields(fields).WithFields(log.Fields{
		"trade_id": t.ID,
		"entry":    t.EntryPrice,
		"stop":     t.StopLoss,
		"target":   t.TakeProfit,
		"units":    t.Units,
		"rr":       fmt.Sprintf("%.2f", risk.RR(t.EntryPrice, t.StopLoss, t.TakeProfit)),
		"risk_pct": fmt.Sprintf("%.3f", t.PlannedRiskPct*100),
		"method":   t.Levels.Method,
		"degraded": t.Levels.Degraded || t.SizeDegraded,
	}).Info("trade opened")
	for _, l := range e.listen {
		l.OnTradeOpened(t)
	}
	return Admission{TradeID: t.ID}, nil
}

// prepare runs the pure half of admission: quote, entry fill, exits and
// size. Only the balance read takes the lock.
func (e *Engine) prepare(ctx context.Context, setup TradeSetup, meta market.InstrumentMeta, mid float64, now time.Time) ActiveTrade {
	atr, _, _ := e.calc.ATR(setup.Candles, meta)

	var q market.Quote
	if setup.Spread > 0 {
		q = market.Quote{Bid: mid - setup.Spread/2, Ask: mid + setup.Spread/2}
	} else {
		q = e.model.Quote(mid, meta, now.UTC().Hour(), atr)
	}
	spreadPips := meta.ToPips(q.Spread())

	entry := pricing.EntryPrice(setup.Direction, q)
	entry = e.model.ApplySlippage(entry, setup.Direction, spreadPips, meta, atr, false)

	lv := e.calc.Compute(entry, setup.Direction, meta, setup.Candles, q.Spread(), setup.Structure)

	acct := e.Account()
	rate, err := market.ResolveRate(ctx, meta, acct.Currency, mid, e.rates)
	if err != nil {
		e.log.WithFields(log.Fields{
			"instrument": meta.Name,
			"account":    acct.Currency,
		}).WithError(err).Warn("no conversion rate; sizing to minimum")
		rate = 0
	}

	riskPct := e.governor.Policy().DefaultRiskPct * setup.RiskTier.Multiplier()
	size := risk.SizeByRisk(risk.Inputs{
		Equity:         acct.Balance,
		RiskPct:        riskPct,
		EntryPrice:     entry,
		StopPrice:      lv.StopLoss,
		QuoteToAccount: rate,
		LotStep:        e.sizing.LotStep,
		MinUnits:       e.sizing.MinUnits,
		MaxUnits:       e.sizing.MaxUnits,
	})

	planned := risk.PlannedRisk(size.Units, entry, lv.StopLoss, rate)

	return ActiveTrade{
		Instrument:          meta.Name,
		Direction:           setup.Direction,
		Confidence:          setup.Confidence,
		RiskTier:            setup.RiskTier,
		Status:              StatusPending,
		EntryPrice:          entry,
		EntryTime:           now,
		Units:               size.Units,
		StopLoss:            lv.StopLoss,
		TakeProfit:          lv.TakeProfit,
		InitialStopDistance: lv.StopDistance(entry),
		Levels:              lv,
		Spread:              q.Spread(),
		ATR:                 lv.Meta.ATR,
		Highest:             entry,
		Lowest:              entry,
		LastMark:            pricing.MarkPrice(setup.Direction, q),
		LastMid:             mid,
		LastUpdate:          now,
		QuoteToAccount:      rate,
		Margin:              risk.MarginRequired(size.Units, mid, rate, acct.Leverage),
		SizeDegraded:        size.Degraded,
		PlannedRisk:         planned,
		PlannedRiskPct:      risk.RiskPct(planned, acct.Balance),
	}
}

// Close closes a trade at its last mark. The boolean is false when the
// trade is not open, in which case nothing changes.
func (e *Engine) Close(ctx context.Context, tradeID string, now time.Time) (ClosedTrade, bool) {
	e.mu.Lock()
	t, ok := e.trades[tradeID]
	if !ok {
		e.mu.Unlock()
		e.log.WithField("trade_id", tradeID).Warn("close ignored: trade not open")
		return ClosedTrade{}, false
	}
	ct, snap := e.closeLocked(t, t.LastMark, now, StatusClosedManual, false)
	e.mu.Unlock()

	e.afterClose(ct, snap)
	return ct, true
}

// CloseAll closes every open trade at its last mark.
func (e *Engine) CloseAll(ctx context.Context, now time.Time) []ClosedTrade {
	e.mu.Lock()
	open := e.sortedLocked()
	closed := make([]ClosedTrade, 0, len(open))
	snaps := make([]journal.RiskSnapshot, 0, len(open))
	for _, t := range open {
		ct, snap := e.closeLocked(t, t.LastMark, now, StatusClosedManual, false)
		closed = append(closed, ct)
		snaps = append(snaps, snap)
	}
	e.mu.Unlock()

	for i := range closed {
		e.afterClose(closed[i], snaps[i])
	}
	return closed
}

// closeLocked removes t, books the P/L and folds it into the governor in
// one step. level is the exit before slippage.
func (e *Engine) closeLocked(t *ActiveTrade, level float64, now time.Time, reason Status, isStop bool) (ClosedTrade, journal.RiskSnapshot) {
	meta, _ := market.Lookup(t.Instrument)

	exit := level
	if reason != StatusClosedTakeProfit && reason != StatusClosedManual {
		exit = e.model.ApplySlippage(level, t.Direction.Opposite(), meta.ToPips(t.Spread), meta, t.ATR, isStop)
	}

	rate, err := market.QuoteToAccountRate(meta, e.acct.Currency, t.LastMid)
	if err != nil {
		rate = t.QuoteToAccount
	}

	move := t.Direction.Sign() * (exit - t.EntryPrice)
	pnl := decimal.NewFromFloat(move * t.Units * rate).Round(2)

	ct := ClosedTrade{
		ActiveTrade: *t,
		ExitPrice:   exit,
		ExitTime:    now,
		Reason:      reason,
		PnLPips:     meta.ToPips(move),
		PnL:         pnl.InexactFloat64(),
	}
	ct.Status = reason
	if e.acct.Balance > 0 {
		ct.PnLPct = ct.PnL / e.acct.Balance
	}

	delete(e.trades, t.ID)
	e.acct.Balance = decimal.NewFromFloat(e.acct.Balance).Add(pnl).InexactFloat64()
	e.governor.RecordClose(now, ct.PnLPct)

	return ct, e.snapshotLocked(now)
}

func (e *Engine) snapshotLocked(now time.Time) journal.RiskSnapshot {
	s := e.governor.State()
	return journal.RiskSnapshot{
		Time:              now,
		Date:              s.Date,
		TradesTaken:       s.TradesTaken,
		Wins:              s.Wins,
		Losses:            s.Losses,
		ConsecutiveLosses: s.ConsecutiveLosses,
		DailyPnLPct:       s.PnLPct,
		PauseUntil:        s.PauseUntil,
		Balance:           e.acct.Balance,
		OpenTrades:        len(e.trades),
	}
}

// afterClose journals and announces a close. It must run without the lock.
func (e *Engine) afterClose(ct ClosedTrade, snap journal.RiskSnapshot) {
	e.log.WithFields(log.Fields{
		"trade_id":   ct.ID,
		"instrument": ct.Instrument,
		"reason":     ct.Reason,
		"exit":       ct.ExitPrice,
		"pips":       fmt.Sprintf("%.1f", ct.PnLPips),
		"pnl":        ct.PnL,
	}).Info("trade closed")

	if e.journal != nil {
		if err := e.journal.RecordTrade(ct.Record()); err != nil {
			e.log.WithError(err).WithField("trade_id", ct.ID).Error("journal trade")
		}
		if err := e.journal.RecordRisk(snap); err != nil {
			e.log.WithError(err).Error("journal risk snapshot")
		}
	}
	for _, l := range e.listen {
		l.OnTradeClosed(ct)
	}
}

func (e *Engine) sortedLocked() []*ActiveTrade {
	out := make([]*ActiveTrade, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns copies of the open trades ordered by id.
func (e *Engine) Active() []ActiveTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ActiveTrade, 0, len(e.trades))
	for _, t := range e.sortedLocked() {
		out = append(out, *t)
	}
	return out
}

// Trade returns a copy of one open trade.
func (e *Engine) Trade(tradeID string) (ActiveTrade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return ActiveTrade{}, false
	}
	return *t, true
}

func (e *Engine) RiskState() risk.DailyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.governor.State()
}

// RestoreRisk seeds the governor, e.g. from the last journaled snapshot.
func (e *Engine) RestoreRisk(s risk.DailyState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.governor.Restore(s)
}

func (e *Engine) Account() Account {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	a.OpenTrades = len(e.trades)
	a.MarginUsed = 0
	for _, t := range e.trades {
		a.MarginUsed += t.Margin
	}
	return a
}
