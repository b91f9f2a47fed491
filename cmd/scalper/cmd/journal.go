package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from the SQLite database.

Subcommands:
  trade    - Get details of a specific trade by ID
  trades   - List trades, optionally for one day
  summary  - Session statistics, optionally for one day
  risk     - The latest recorded risk state

Examples:
  scalper journal trade <trade-id>
  scalper journal trades --day 2024-01-15
  scalper journal summary --today --format org`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var journalRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show the latest risk snapshot",
	Args:  cobra.NoArgs,
	RunE:  runJournalRisk,
}

var (
	journalDBPath string
	journalDay    string
	journalToday  bool
	journalFormat string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalSummaryCmd)
	journalCmd.AddCommand(journalRiskCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./scalper.db", "path to SQLite journal DB")
	journalCmd.PersistentFlags().StringVar(&journalFormat, "format", "table", "output format (table or org)")
	for _, c := range []*cobra.Command{journalTradesCmd, journalSummaryCmd} {
		c.Flags().StringVar(&journalDay, "day", "", "only trades closed on this day (YYYY-MM-DD, local time)")
		c.Flags().BoolVar(&journalToday, "today", false, "only trades closed today")
	}
}

// openJournal builds the configured sink; "none" and "" return nil.
func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		j, err := journal.NewCSV(jc.TradesFile, jc.RiskFile)
		if err != nil {
			return nil, fmt.Errorf("create journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, fmt.Errorf("create journal: %w", err)
		}
		return j, nil
	}
	return nil, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	if journalFormat == "org" {
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
		return nil
	}
	journal.RenderTrades(cmd.OutOrStdout(), []journal.TradeRecord{rec})
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	recs, _, err := selectTrades(cmd)
	if err != nil {
		return err
	}

	if journalFormat == "org" {
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
		return nil
	}
	journal.RenderTrades(cmd.OutOrStdout(), recs)
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	recs, title, err := selectTrades(cmd)
	if err != nil {
		return err
	}

	s := journal.Summarize(recs)
	if journalFormat == "org" {
		out, err := journal.FormatSummaryOrg(title, s)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	journal.RenderSummary(cmd.OutOrStdout(), s, "")
	return nil
}

func runJournalRisk(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	r, err := j.LatestRisk(cmd.Context())
	if err != nil {
		return fmt.Errorf("latest risk: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "As of:              %s\n", r.Time.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Trading day:        %s\n", r.Date)
	fmt.Fprintf(out, "Trades taken:       %d (%d won, %d lost)\n", r.TradesTaken, r.Wins, r.Losses)
	fmt.Fprintf(out, "Consecutive losses: %d\n", r.ConsecutiveLosses)
	fmt.Fprintf(out, "Daily P/L:          %.2f%%\n", r.DailyPnLPct*100)
	fmt.Fprintf(out, "Balance:            %.2f\n", r.Balance)
	if !r.PauseUntil.IsZero() {
		fmt.Fprintf(out, "Paused until:       %s\n", r.PauseUntil.Local().Format(time.RFC3339))
	}
	return nil
}

// selectTrades applies the --day / --today filter and returns a title for
// the selection.
func selectTrades(cmd *cobra.Command) ([]journal.TradeRecord, string, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	day := journalDay
	if journalToday {
		day = time.Now().Format("2006-01-02")
	}
	if day == "" {
		recs, err := j.ListTrades(cmd.Context())
		if err != nil {
			return nil, "", fmt.Errorf("query trades: %w", err)
		}
		return recs, journalDBPath, nil
	}

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return nil, "", fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListTradesClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return nil, "", fmt.Errorf("query trades: %w", err)
	}
	return recs, day, nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
