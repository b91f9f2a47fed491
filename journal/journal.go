// journal/journal.go
package journal

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("journal: not found")

// TradeRecord is the durable form of a closed trade.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Direction  string
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	CloseTime  time.Time
	Pips       float64
	RealizedPL float64 // account currency
	PnLPct     float64 // fraction of balance at close
	Reason     string
}

// Win reports whether the trade closed with a profit.
func (t TradeRecord) Win() bool { return t.RealizedPL > 0 }

// RiskSnapshot is the governor state after a close.
type RiskSnapshot struct {
	Time              time.Time
	Date              string
	TradesTaken       int
	Wins              int
	Losses            int
	ConsecutiveLosses int
	DailyPnLPct       float64
	PauseUntil        time.Time
	Balance           float64
	OpenTrades        int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordRisk(RiskSnapshot) error
	Close() error
}

// Reader queries what a Journal recorded.
type Reader interface {
	GetTrade(ctx context.Context, tradeID string) (TradeRecord, error)
	ListTrades(ctx context.Context) ([]TradeRecord, error)
	ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error)
	LatestRisk(ctx context.Context) (RiskSnapshot, error)
}
