package exits

import "math"

// Method tags how the exit levels were derived.
type Method string

const (
	MethodVolatility Method = "volatility"
	MethodStructure  Method = "structure"
	MethodHybrid     Method = "hybrid"
)

// Meta carries the intermediate values behind a set of levels.
type Meta struct {
	ATR        float64
	ATRSamples int
	Buffer     float64
	SwingHigh  float64
	SwingLow   float64
	Pivot      float64

	// TargetLevel is the structure level the target was pulled to, 0 if none.
	TargetLevel float64
}

// Levels are the exits for one position at admission time.
type Levels struct {
	StopLoss       float64
	StopLossPips   float64
	TakeProfit     float64
	TakeProfitPips float64
	RiskReward     float64

	Method     Method
	Confidence float64
	Meta       Meta

	// Degraded is set when ATR was replaced by the fallback distance.
	Degraded bool
}

// StopDistance is the absolute price distance from entry to the stop.
func (l Levels) StopDistance(entry float64) float64 {
	return math.Abs(entry - l.StopLoss)
}
