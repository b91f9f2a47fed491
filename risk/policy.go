package risk

import "time"

type Policy struct {
	AccountBaseCurrency string // "USD"

	// Risk per trade as a fraction of equity
	DefaultRiskPct float64 // 0.005

	// Circuit breakers
	MaxDailyLossPct      float64       // 0.015, fraction of equity
	MaxConsecutiveLosses int           // 3
	PauseWindow          time.Duration // 30m

	// Exposure limits
	MaxTradesPerDay int // 10
	MaxOpenTrades   int // 3

	// Trade constraints
	MinRR         float64 // 1.5
	MaxSpreadPips float64 // 0 disables the spread gate

	// Location defines the trading day boundary; nil means UTC.
	Location *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		AccountBaseCurrency:  "USD",
		DefaultRiskPct:       0.005,
		MaxDailyLossPct:      0.015,
		MaxConsecutiveLosses: 3,
		PauseWindow:          30 * time.Minute,
		MaxTradesPerDay:      10,
		MaxOpenTrades:        3,
		MinRR:                1.5,
		MaxSpreadPips:        3,
	}
}

// Reason is the typed outcome of a rejected admission. Rejection is normal
// control flow, not an error.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMaxTradesPerDay   Reason = "MAX_TRADES_PER_DAY"
	ReasonMaxOpenTrades     Reason = "TOO_MANY_OPEN_TRADES"
	ReasonDailyLossLimit    Reason = "DAILY_LOSS_LIMIT"
	ReasonPaused            Reason = "PAUSED"
	ReasonConsecutiveLosses Reason = "CONSECUTIVE_LOSSES"
	ReasonSpreadTooWide     Reason = "SPREAD_TOO_WIDE"
)

type Decision struct {
	Allowed bool
	Reason  Reason
	Msg     string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func reject(r Reason, msg string) Decision {
	return Decision{Reason: r, Msg: msg}
}

// DailyState is the session's running risk tally for one trading day.
type DailyState struct {
	Date              string    `json:"date" yaml:"date"` // 2006-01-02 in the policy location
	TradesTaken       int       `json:"trades_taken" yaml:"trades_taken"`
	Wins              int       `json:"wins" yaml:"wins"`
	Losses            int       `json:"losses" yaml:"losses"`
	ConsecutiveLosses int       `json:"consecutive_losses" yaml:"consecutive_losses"`
	PnLPct            float64   `json:"pnl_pct" yaml:"pnl_pct"` // fraction of equity
	PauseUntil        time.Time `json:"pause_until" yaml:"pause_until"`
}
