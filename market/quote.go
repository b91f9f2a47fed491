package market

// Quote is a two-sided price.
type Quote struct {
	Bid float64
	Ask float64
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}
