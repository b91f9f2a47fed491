package risk

// EUR_USD → quote = USD → QuoteToAccount = 1.0
// USD_JPY → quote = JPY → QuoteToAccount = 1 / USDJPY_mid

import "math"

type Inputs struct {
	Equity         float64
	RiskPct        float64 // 0.005
	EntryPrice     float64
	StopPrice      float64
	QuoteToAccount float64 // USD quote → 1.0, JPY quote → JPYUSD; <= 0 when unknown

	LotStep  float64 // 1000
	MinUnits float64
	MaxUnits float64
}

type Result struct {
	Units        float64
	StopDistance float64
	RiskAmount   float64

	// Degraded is set when sizing fell back to MinUnits because the
	// conversion rate or stop distance was unusable.
	Degraded bool
}

// SizeByRisk sizes a position so that hitting the stop loses RiskPct of
// equity in account currency. The unit count is rounded to the nearest
// LotStep and clamped to [MinUnits, MaxUnits]. It never fails: unusable
// inputs size to MinUnits.
func SizeByRisk(in Inputs) Result {
	stopDist := math.Abs(in.EntryPrice - in.StopPrice)
	riskAmt := in.Equity * in.RiskPct

	res := Result{StopDistance: stopDist, RiskAmount: riskAmt}

	if !usable(in.QuoteToAccount) || !usable(stopDist) || !usable(riskAmt) {
		res.Units = in.MinUnits
		res.Degraded = true
		return res
	}

	riskPerUnit := stopDist * in.QuoteToAccount
	units := riskAmt / riskPerUnit

	if in.LotStep > 0 {
		units = math.Round(units/in.LotStep) * in.LotStep
	} else {
		units = math.Floor(units)
	}

	res.Units = clamp(units, in.MinUnits, in.MaxUnits)
	return res
}

func usable(x float64) bool {
	return x > 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clamp(x, lo, hi float64) float64 {
	if lo > 0 && x < lo {
		return lo
	}
	if hi > 0 && x > hi {
		return hi
	}
	return x
}
