package market

import (
	"context"
	"fmt"
)

// RateSource supplies quote->account conversion rates for crosses the
// instrument table cannot derive from the traded price alone.
type RateSource interface {
	QuoteToAccount(ctx context.Context, quoteCurrency, accountCurrency string) (float64, error)
}

// QuoteToAccountRate returns the factor converting an amount in the
// instrument's quote currency into the account currency, using mid as the
// current price of the instrument itself.
func QuoteToAccountRate(meta InstrumentMeta, accountCurrency string, mid float64) (float64, error) {
	// Case 1: quote currency == account currency (EUR_USD, GBP_USD, etc.)
	if meta.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}

	// Case 2: account currency is base (USD_JPY, USD_CHF, etc.)
	if meta.BaseCurrency == accountCurrency {
		if mid <= 0 {
			return 0, fmt.Errorf("no mid price for %s", meta.Name)
		}
		// USD_JPY mid gives JPY per USD; we want USD per JPY
		return 1.0 / mid, nil
	}

	// Case 3: cross currency, needs a RateSource
	return 0, fmt.Errorf(
		"cross conversion not available for %s → %s",
		meta.QuoteCurrency,
		accountCurrency,
	)
}

// ResolveRate tries the direct conversion first and falls back to src for
// crosses. A nil src means crosses are unavailable.
func ResolveRate(ctx context.Context, meta InstrumentMeta, accountCurrency string, mid float64, src RateSource) (float64, error) {
	rate, err := QuoteToAccountRate(meta, accountCurrency, mid)
	if err == nil {
		return rate, nil
	}
	if src == nil {
		return 0, err
	}
	rate, err = src.QuoteToAccount(ctx, meta.QuoteCurrency, accountCurrency)
	if err != nil {
		return 0, fmt.Errorf("rate %s→%s: %w", meta.QuoteCurrency, accountCurrency, err)
	}
	return rate, nil
}

// StaticRates is a fixed RateSource keyed by "QUOTE/ACCOUNT".
type StaticRates map[string]float64

func (s StaticRates) QuoteToAccount(ctx context.Context, quoteCurrency, accountCurrency string) (float64, error) {
	r, ok := s[quoteCurrency+"/"+accountCurrency]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("%w: no rate %s/%s", ErrDataUnavailable, quoteCurrency, accountCurrency)
	}
	return r, nil
}
