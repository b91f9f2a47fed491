package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, instrument, direction, units, entry_price, exit_price, stop_loss,
	take_profit, open_time, close_time, pips, realized_pl, pnl_pct, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Instrument,
		&rec.Direction,
		&rec.Units,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.StopLoss,
		&rec.TakeProfit,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Pips,
		&rec.RealizedPL,
		&rec.PnLPct,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(ctx context.Context, tradeID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTrades returns every trade ordered by close time.
func (j *SQLite) ListTrades(ctx context.Context) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY close_time ASC, trade_id ASC`)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, trade_id ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(ctx context.Context, query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestRisk returns the most recent risk snapshot.
func (j *SQLite) LatestRisk(ctx context.Context) (RiskSnapshot, error) {
	var r RiskSnapshot
	err := j.db.QueryRowContext(ctx, `
		SELECT time, date, trades_taken, wins, losses, consecutive_losses, daily_pnl_pct,
		       pause_until, balance, open_trades
		FROM risk
		ORDER BY time DESC, rowid DESC
		LIMIT 1`).Scan(
		&r.Time,
		&r.Date,
		&r.TradesTaken,
		&r.Wins,
		&r.Losses,
		&r.ConsecutiveLosses,
		&r.DailyPnLPct,
		&r.PauseUntil,
		&r.Balance,
		&r.OpenTrades,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RiskSnapshot{}, fmt.Errorf("risk snapshot: %w", ErrNotFound)
		}
		return RiskSnapshot{}, err
	}
	return r, nil
}
