package market

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// candleRow is the on-disk layout of a candle file:
//
//	time,instrument,open,high,low,close,volume
type candleRow struct {
	Time       string  `csv:"time"`
	Instrument string  `csv:"instrument"`
	Open       float64 `csv:"open"`
	High       float64 `csv:"high"`
	Low        float64 `csv:"low"`
	Close      float64 `csv:"close"`
	Volume     float64 `csv:"volume,omitempty"`
}

// Series is a time-ordered set of candles per instrument.
type Series map[string][]Candle

// Instruments returns the instrument names in sorted order.
func (s Series) Instruments() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ReadCandlesCSV parses candle rows. Times must be RFC3339.
func ReadCandlesCSV(r io.Reader) (Series, error) {
	var rows []*candleRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse candles: %w", err)
	}

	out := Series{}
	for i, row := range rows {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row.Time))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time %q: %w", i+1, row.Time, err)
		}
		inst := strings.TrimSpace(row.Instrument)
		if _, ok := Instruments[inst]; !ok {
			return nil, fmt.Errorf("row %d: unknown instrument %s", i+1, inst)
		}
		out[inst] = append(out[inst], Candle{
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Time:   ts.UTC(),
			Volume: row.Volume,
		})
	}

	for inst := range out {
		cs := out[inst]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time.Before(cs[j].Time) })
	}
	return out, nil
}

// LoadCandlesCSV reads a candle file from disk.
func LoadCandlesCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCandlesCSV(f)
}

// WriteCandlesCSV writes candles in the layout ReadCandlesCSV accepts.
func WriteCandlesCSV(w io.Writer, instrument string, candles []Candle) error {
	rows := make([]*candleRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, &candleRow{
			Time:       c.Time.UTC().Format(time.RFC3339),
			Instrument: instrument,
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write candles: %w", err)
	}
	return nil
}
