package oanda

import (
	"context"
	"fmt"

	"github.com/rustyeddy/scalper/market"
)

// Feed serves the last completed mid candle per instrument.
type Feed struct {
	Client      *Client
	Granularity Granularity
}

var _ market.Feed = (*Feed)(nil)

func (f *Feed) LatestCandle(ctx context.Context, instrument string) (market.Candle, error) {
	cs, err := f.Client.GetCandles(ctx, CandlesRequest{
		Instrument:  instrument,
		Granularity: f.Granularity,
		Count:       2,
	})
	if err != nil {
		return market.Candle{}, err
	}
	if len(cs) == 0 {
		return market.Candle{}, fmt.Errorf("%w: no completed candle for %s", market.ErrDataUnavailable, instrument)
	}
	return cs[len(cs)-1], nil
}

// History returns up to n completed candles ending now, for building a
// setup window.
func (f *Feed) History(ctx context.Context, instrument string, n int) ([]market.Candle, error) {
	return f.Client.GetCandles(ctx, CandlesRequest{
		Instrument:  instrument,
		Granularity: f.Granularity,
		Count:       n,
	})
}

// Rates converts quote currency amounts using the latest close of the
// pair that links the two currencies.
type Rates struct {
	Feed market.Feed
}

var _ market.RateSource = Rates{}

func (r Rates) QuoteToAccount(ctx context.Context, quoteCurrency, accountCurrency string) (float64, error) {
	if quoteCurrency == accountCurrency {
		return 1, nil
	}
	if _, ok := market.Instruments[quoteCurrency+"_"+accountCurrency]; ok {
		c, err := r.Feed.LatestCandle(ctx, quoteCurrency+"_"+accountCurrency)
		if err != nil {
			return 0, err
		}
		return c.Close, nil
	}
	if _, ok := market.Instruments[accountCurrency+"_"+quoteCurrency]; ok {
		c, err := r.Feed.LatestCandle(ctx, accountCurrency+"_"+quoteCurrency)
		if err != nil {
			return 0, err
		}
		if c.Close <= 0 {
			return 0, fmt.Errorf("%w: bad close for %s_%s", market.ErrDataUnavailable, accountCurrency, quoteCurrency)
		}
		return 1 / c.Close, nil
	}
	return 0, fmt.Errorf("%w: no pair links %s and %s", market.ErrDataUnavailable, quoteCurrency, accountCurrency)
}
