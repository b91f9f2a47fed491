package journal

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// tradeRow is one line of the trades file.
type tradeRow struct {
	TradeID    string `csv:"trade_id"`
	Instrument string `csv:"instrument"`
	Direction  string `csv:"direction"`
	Units      string `csv:"units"`
	EntryPrice string `csv:"entry_price"`
	ExitPrice  string `csv:"exit_price"`
	StopLoss   string `csv:"stop_loss"`
	TakeProfit string `csv:"take_profit"`
	OpenTime   string `csv:"open_time"`
	CloseTime  string `csv:"close_time"`
	Pips       string `csv:"pips"`
	RealizedPL string `csv:"realized_pl"`
	PnLPct     string `csv:"pnl_pct"`
	Reason     string `csv:"reason"`
}

// riskRow is one line of the risk file. An empty pause_until means no
// pause was set.
type riskRow struct {
	Time              string `csv:"time"`
	Date              string `csv:"date"`
	TradesTaken       int    `csv:"trades_taken"`
	Wins              int    `csv:"wins"`
	Losses            int    `csv:"losses"`
	ConsecutiveLosses int    `csv:"consecutive_losses"`
	DailyPnLPct       string `csv:"daily_pnl_pct"`
	PauseUntil        string `csv:"pause_until"`
	Balance           string `csv:"balance"`
	OpenTrades        int    `csv:"open_trades"`
}

// CSVJournal appends trades and risk snapshots to two CSV files. Every row
// is flushed as it is written.
type CSVJournal struct {
	mu     sync.Mutex
	tf, rf *os.File
}

func NewCSV(tradesPath, riskPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, fmt.Errorf("create trades csv: %w", err)
	}
	rf, err := os.Create(riskPath)
	if err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("create risk csv: %w", err)
	}

	j := &CSVJournal{tf: tf, rf: rf}
	// Marshal of an empty slice writes just the header line.
	if err := gocsv.Marshal([]tradeRow{}, tf); err != nil {
		_ = j.closeFiles()
		return nil, fmt.Errorf("write trades header: %w", err)
	}
	if err := gocsv.Marshal([]riskRow{}, rf); err != nil {
		_ = j.closeFiles()
		return nil, fmt.Errorf("write risk header: %w", err)
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	row := tradeRow{
		TradeID:    t.TradeID,
		Instrument: t.Instrument,
		Direction:  t.Direction,
		Units:      f(t.Units),
		EntryPrice: f(t.EntryPrice),
		ExitPrice:  f(t.ExitPrice),
		StopLoss:   f(t.StopLoss),
		TakeProfit: f(t.TakeProfit),
		OpenTime:   t.OpenTime.UTC().Format(time.RFC3339),
		CloseTime:  t.CloseTime.UTC().Format(time.RFC3339),
		Pips:       f(t.Pips),
		RealizedPL: f(t.RealizedPL),
		PnLPct:     f(t.PnLPct),
		Reason:     t.Reason,
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return gocsv.MarshalWithoutHeaders([]tradeRow{row}, j.tf)
}

func (j *CSVJournal) RecordRisk(r RiskSnapshot) error {
	row := riskRow{
		Time:              r.Time.UTC().Format(time.RFC3339),
		Date:              r.Date,
		TradesTaken:       r.TradesTaken,
		Wins:              r.Wins,
		Losses:            r.Losses,
		ConsecutiveLosses: r.ConsecutiveLosses,
		DailyPnLPct:       f(r.DailyPnLPct),
		Balance:           f(r.Balance),
		OpenTrades:        r.OpenTrades,
	}
	if !r.PauseUntil.IsZero() {
		row.PauseUntil = r.PauseUntil.UTC().Format(time.RFC3339)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return gocsv.MarshalWithoutHeaders([]riskRow{row}, j.rf)
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.rf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
