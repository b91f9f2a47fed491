package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Journal and Reader backed by a single database file. Times are
// stored in UTC so text comparison orders them.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, direction, units, entry_price, exit_price, stop_loss, take_profit,
		 open_time, close_time, pips, realized_pl, pnl_pct, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.Direction, t.Units, t.EntryPrice, t.ExitPrice,
		t.StopLoss, t.TakeProfit, t.OpenTime.UTC(), t.CloseTime.UTC(),
		t.Pips, t.RealizedPL, t.PnLPct, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordRisk(r RiskSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO risk
		(time, date, trades_taken, wins, losses, consecutive_losses, daily_pnl_pct,
		 pause_until, balance, open_trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Time.UTC(), r.Date, r.TradesTaken, r.Wins, r.Losses, r.ConsecutiveLosses,
		r.DailyPnLPct, r.PauseUntil.UTC(), r.Balance, r.OpenTrades,
	)
	if err != nil {
		return fmt.Errorf("record risk snapshot: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
