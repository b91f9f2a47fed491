package journal

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary aggregates a set of closed trades.
type Summary struct {
	Trades    int
	Wins      int
	Losses    int
	Scratches int
	WinRate   float64

	NetPL        float64
	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64

	MeanPips   float64
	StdDevPips float64

	// MaxDrawdown is the largest peak-to-trough fall of cumulative P&L, in
	// account currency.
	MaxDrawdown float64

	ByReason map[string]int
	Start    time.Time
	End      time.Time
}

// Summarize computes session statistics. trades should be ordered by close
// time for the drawdown to be meaningful.
func Summarize(trades []TradeRecord) Summary {
	s := Summary{Trades: len(trades), ByReason: map[string]int{}}
	if len(trades) == 0 {
		return s
	}

	pips := make(stats.Float64Data, 0, len(trades))
	var wins, losses stats.Float64Data
	var cum, peak float64

	for i, t := range trades {
		if i == 0 || t.OpenTime.Before(s.Start) {
			s.Start = t.OpenTime
		}
		if t.CloseTime.After(s.End) {
			s.End = t.CloseTime
		}
		s.ByReason[t.Reason]++
		pips = append(pips, t.Pips)

		switch {
		case t.RealizedPL > 0:
			s.Wins++
			wins = append(wins, t.RealizedPL)
		case t.RealizedPL < 0:
			s.Losses++
			losses = append(losses, t.RealizedPL)
		default:
			s.Scratches++
		}

		cum += t.RealizedPL
		peak = math.Max(peak, cum)
		s.MaxDrawdown = math.Max(s.MaxDrawdown, peak-cum)
	}

	s.NetPL = cum
	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.GrossProfit, _ = stats.Sum(wins)
	gl, _ := stats.Sum(losses)
	s.GrossLoss = math.Abs(gl)
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	if len(wins) > 0 {
		s.AvgWin, _ = stats.Mean(wins)
	}
	if len(losses) > 0 {
		s.AvgLoss, _ = stats.Mean(losses)
	}
	s.MeanPips, _ = stats.Mean(pips)
	if len(pips) > 1 {
		s.StdDevPips, _ = stats.StandardDeviation(pips)
	}
	return s
}

// RenderSummary writes the summary as a two column table.
func RenderSummary(w io.Writer, s Summary, currency string) {
	p := message.NewPrinter(language.English)
	money := func(v float64) string {
		if currency == "" {
			return p.Sprintf("%.2f", v)
		}
		return fmt.Sprintf("%s %s", p.Sprintf("%.2f", v), currency)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"Trades", fmt.Sprintf("%d", s.Trades)})
	table.Append([]string{"Wins / Losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses)})
	table.Append([]string{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate*100)})
	table.Append([]string{"Net P/L", money(s.NetPL)})
	table.Append([]string{"Gross profit", money(s.GrossProfit)})
	table.Append([]string{"Gross loss", money(s.GrossLoss)})
	pf := "n/a"
	if s.ProfitFactor > 0 {
		pf = fmt.Sprintf("%.2f", s.ProfitFactor)
	}
	table.Append([]string{"Profit factor", pf})
	table.Append([]string{"Mean pips", fmt.Sprintf("%.1f (sd %.1f)", s.MeanPips, s.StdDevPips)})
	table.Append([]string{"Max drawdown", money(s.MaxDrawdown)})

	table.Render()
}

// RenderTrades writes one row per trade.
func RenderTrades(w io.Writer, trades []TradeRecord) {
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Instrument", "Side", "Units", "Entry", "Exit", "Pips", "P/L", "Reason"})

	for _, t := range trades {
		table.Append([]string{
			shortID(t.TradeID),
			t.Instrument,
			t.Direction,
			p.Sprintf("%.0f", t.Units),
			fmt.Sprintf("%.5f", t.EntryPrice),
			fmt.Sprintf("%.5f", t.ExitPrice),
			fmt.Sprintf("%.1f", t.Pips),
			p.Sprintf("%.2f", t.RealizedPL),
			t.Reason,
		})
	}
	table.Render()
}
