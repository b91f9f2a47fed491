package engine

import (
	"time"

	"github.com/rustyeddy/scalper/exits"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
)

// RiskTier scales the policy's default risk per trade.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierStandard RiskTier = "standard"
	TierHigh     RiskTier = "high"
)

func (t RiskTier) Multiplier() float64 {
	switch t {
	case TierLow:
		return 0.5
	case TierHigh:
		return 1.5
	default:
		return 1.0
	}
}

func (t RiskTier) Valid() bool {
	switch t {
	case "", TierLow, TierStandard, TierHigh:
		return true
	}
	return false
}

// TradeSetup is an approved trade direction from the strategy evaluator.
// It is consumed once by Propose.
type TradeSetup struct {
	Instrument string
	Direction  market.Direction
	Confidence float64
	RiskTier   RiskTier

	// Candles is the recent window, oldest first. The last valid candle's
	// close is the mid price at admission.
	Candles []market.Candle

	// Spread is the current spread in price units; zero uses the pricing
	// model.
	Spread float64

	// Structure is optional; nil sizes exits on volatility alone.
	Structure *indicators.Structure
}

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusPending          Status = "pending_admission"
	StatusOpen             Status = "open"
	StatusClosedTakeProfit Status = "take_profit"
	StatusClosedStopLoss   Status = "stop_loss"
	StatusClosedTimeout    Status = "timeout"
	StatusClosedManual     Status = "manual"
)

// Closed reports whether s is terminal.
func (s Status) Closed() bool {
	switch s {
	case StatusClosedTakeProfit, StatusClosedStopLoss, StatusClosedTimeout, StatusClosedManual:
		return true
	}
	return false
}

// ActiveTrade is an open position. The engine owns it; callers only ever
// see copies.
type ActiveTrade struct {
	ID         string
	Instrument string
	Direction  market.Direction
	Confidence float64
	RiskTier   RiskTier
	Status     Status

	EntryPrice float64
	EntryTime  time.Time
	Units      float64

	StopLoss            float64
	TakeProfit          float64
	InitialStopDistance float64
	Levels              exits.Levels

	// Spread and ATR as measured at entry, in price units.
	Spread float64
	ATR    float64

	Highest float64
	Lowest  float64

	// LastMark is the most recent exit-side price; LastMid the candle close
	// it came from.
	LastMark   float64
	LastMid    float64
	LastUpdate time.Time

	QuoteToAccount float64
	Margin         float64
	SizeDegraded   bool

	// PlannedRisk is the account currency loss at the initial stop after
	// lot rounding; PlannedRiskPct the same as a fraction of the balance.
	PlannedRisk    float64
	PlannedRiskPct float64
}

// UnrealizedPL values the position at its last mark in quote currency.
func (t ActiveTrade) UnrealizedPL() float64 {
	return t.Direction.Sign() * t.Units * (t.LastMark - t.EntryPrice)
}

// ClosedTrade is the immutable record of a finished trade.
type ClosedTrade struct {
	ActiveTrade

	ExitPrice float64
	ExitTime  time.Time
	Reason    Status

	PnLPips float64
	PnL     float64 // account currency, rounded to cents
	PnLPct  float64 // fraction of balance before the close
}

// Record converts the trade for the journal.
func (c ClosedTrade) Record() journal.TradeRecord {
	return journal.TradeRecord{
		TradeID:    c.ID,
		Instrument: c.Instrument,
		Direction:  c.Direction.String(),
		Units:      c.Units,
		EntryPrice: c.EntryPrice,
		ExitPrice:  c.ExitPrice,
		StopLoss:   c.StopLoss,
		TakeProfit: c.TakeProfit,
		OpenTime:   c.EntryTime,
		CloseTime:  c.ExitTime,
		Pips:       c.PnLPips,
		RealizedPL: c.PnL,
		PnLPct:     c.PnLPct,
		Reason:     string(c.Reason),
	}
}

// Admission is the answer to Propose: a trade id, or a rejection reason.
type Admission struct {
	TradeID string
	Reason  risk.Reason
	Msg     string
}

func (a Admission) Admitted() bool { return a.TradeID != "" }

// Account is the engine's cash view.
type Account struct {
	ID         string
	Currency   string
	Balance    float64
	Leverage   float64
	MarginUsed float64
	OpenTrades int
}

// Listener is notified of trade events after the engine lock is released.
type Listener interface {
	OnTradeOpened(ActiveTrade)
	OnTradeClosed(ClosedTrade)
	OnRejected(TradeSetup, Admission)
}
