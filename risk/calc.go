package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk computes the absolute account-currency risk if stop is hit.
func PlannedRisk(units, entry, stop, quoteToAccount float64) float64 {
	// price move in quote currency per 1 unit of base:
	move := abs(entry - stop)
	// P/L in quote currency = units * move
	plQuote := abs(units) * move
	// Convert quote currency -> account currency
	return plQuote * quoteToAccount
}

func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

// MarginRequired is the notional value in account currency divided by
// leverage. Non-positive leverage is treated as 1:1.
func MarginRequired(units, mid, quoteToAccount, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	notional := abs(units) * mid * quoteToAccount
	return notional / leverage
}
