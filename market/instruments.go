// market/instruments.go
package market

import (
	"fmt"
	"math"
)

type InstrumentMeta struct {
	Name                string
	BaseCurrency        string
	QuoteCurrency       string
	PipLocation         int
	TradeUnitsPrecision int
	MinimumTradeSize    float64
	MarginRate          float64

	// SpreadPips is the typical interbank spread used when no live quote
	// spread is available.
	SpreadPips float64
}

// PipSize returns the price increment of one pip (0.0001, or 0.01 for JPY quotes).
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow(10, float64(m.PipLocation))
}

// IsJPY reports whether the pair is quoted in yen-style two decimal pips.
func (m InstrumentMeta) IsJPY() bool {
	return m.QuoteCurrency == "JPY"
}

// ToPips converts a price distance into pips.
func (m InstrumentMeta) ToPips(distance float64) float64 {
	return distance / m.PipSize()
}

// FromPips converts pips into a price distance.
func (m InstrumentMeta) FromPips(pips float64) float64 {
	return pips * m.PipSize()
}

// Lookup returns the metadata for an instrument name.
func Lookup(instrument string) (InstrumentMeta, error) {
	meta, ok := Instruments[instrument]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unknown instrument %s", instrument)
	}
	return meta, nil
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {
		Name:             "EUR_USD",
		BaseCurrency:     "EUR",
		QuoteCurrency:    "USD",
		PipLocation:      -4,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.0,
	},
	"GBP_USD": {
		Name:             "GBP_USD",
		BaseCurrency:     "GBP",
		QuoteCurrency:    "USD",
		PipLocation:      -4,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.4,
	},
	"AUD_USD": {
		Name:             "AUD_USD",
		BaseCurrency:     "AUD",
		QuoteCurrency:    "USD",
		PipLocation:      -4,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.3,
	},
	"USD_JPY": {
		Name:             "USD_JPY",
		BaseCurrency:     "USD",
		QuoteCurrency:    "JPY",
		PipLocation:      -2,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.2,
	},
	"USD_CHF": {
		Name:             "USD_CHF",
		BaseCurrency:     "USD",
		QuoteCurrency:    "CHF",
		PipLocation:      -4,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.6,
	},
	"EUR_JPY": {
		Name:             "EUR_JPY",
		BaseCurrency:     "EUR",
		QuoteCurrency:    "JPY",
		PipLocation:      -2,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.8,
	},
	"EUR_GBP": {
		Name:             "EUR_GBP",
		BaseCurrency:     "EUR",
		QuoteCurrency:    "GBP",
		PipLocation:      -4,
		MinimumTradeSize: 1,
		MarginRate:       0.02,
		SpreadPips:       1.5,
	},
}
