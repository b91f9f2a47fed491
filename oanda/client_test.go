package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/market"
)

func mid(o, h, l, c string) *candleData {
	return &candleData{O: o, H: h, L: l, C: c}
}

// server answers every candles request from the per-instrument table and
// records the query strings it saw.
type server struct {
	mu      sync.Mutex
	queries []string
	status  int
	byInstr map[string][]apiCandle
}

func (s *server) start(t *testing.T) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Path+"?"+r.URL.RawQuery)
		status := s.status
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, "nope", status)
			return
		}
		var instr string
		// /v3/instruments/{instr}/candles
		if n := len("/v3/instruments/"); len(r.URL.Path) > n {
			instr = r.URL.Path[n : len(r.URL.Path)-len("/candles")]
		}
		json.NewEncoder(w).Encode(candlesResponse{Instrument: instr, Granularity: r.URL.Query().Get("granularity"), Candles: s.byInstr[instr]})
	}))
	t.Cleanup(ts.Close)

	c := NewClientURL("test-token", ts.URL)
	c.rest.SetTimeout(5 * time.Second)
	return c
}

func (s *server) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PracticeURL, NewClient("tok", true).baseURL)
	assert.Equal(t, LiveURL, NewClient("tok", false).baseURL)
	assert.Equal(t, PracticeURL, NewClient("tok", true).rest.BaseURL)
	assert.Equal(t, "tok", NewClient("tok", true).rest.Token)
}

func TestGetCandles_Success(t *testing.T) {
	t.Parallel()

	s := &server{byInstr: map[string][]apiCandle{
		"EUR_USD": {
			{Complete: true, Volume: 100, Time: "2024-01-01T10:00:00.000000000Z", Mid: mid("1.0850", "1.0860", "1.0840", "1.0855")},
			{Complete: true, Volume: 150, Time: "2024-01-01T10:05:00.000000000Z", Mid: mid("1.0855", "1.0870", "1.0850", "1.0865")},
			{Complete: false, Volume: 50, Time: "2024-01-01T10:10:00.000000000Z", Mid: mid("1.0865", "1.0866", "1.0860", "1.0862")},
		},
	}}
	client := s.start(t)

	candles, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", Granularity: M5, Count: 100})
	require.NoError(t, err)
	require.Len(t, candles, 2, "incomplete candle should be skipped")

	assert.Equal(t, 1.0850, candles[0].Open)
	assert.Equal(t, 1.0860, candles[0].High)
	assert.Equal(t, 1.0840, candles[0].Low)
	assert.Equal(t, 1.0855, candles[0].Close)
	assert.Equal(t, 100.0, candles[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), candles[1].Time)

	q := s.seen()
	require.Len(t, q, 1)
	assert.Contains(t, q[0], "count=100")
	assert.Contains(t, q[0], "granularity=M5")
	assert.Contains(t, q[0], "price=M")

	all, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", IncludeIncomplete: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetCandles_TimeRangeOmitsCount(t *testing.T) {
	t.Parallel()

	s := &server{}
	client := s.start(t)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", From: from, To: from.Add(time.Hour)})
	require.NoError(t, err)

	q := s.seen()
	require.Len(t, q, 1)
	assert.NotContains(t, q[0], "count=")
	assert.Contains(t, q[0], "from=2024-01-01T00%3A00%3A00Z")
}

func TestGetCandles_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := NewClientURL("", "http://example.com").GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD"})
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = NewClientURL("tok", "http://example.com").GetCandles(ctx, CandlesRequest{Instrument: "XAU_USD"})
	assert.Error(t, err)

	_, err = NewClientURL("tok", "http://example.com").GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: MaxCount + 1})
	assert.Error(t, err)

	busy := (&server{status: http.StatusServiceUnavailable}).start(t)
	_, err = busy.GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: 2})
	assert.ErrorIs(t, err, market.ErrDataUnavailable)

	throttled := (&server{status: http.StatusTooManyRequests}).start(t)
	_, err = throttled.GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: 2})
	assert.ErrorIs(t, err, market.ErrDataUnavailable)

	denied := (&server{status: http.StatusUnauthorized}).start(t)
	_, err = denied.GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: 2})
	require.Error(t, err)
	assert.NotErrorIs(t, err, market.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "http 401")
}

func TestGetCandles_TransportAndDecodeErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	gone := httptest.NewServer(http.NotFoundHandler())
	gone.Close()
	_, err := NewClientURL("tok", gone.URL).GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: 2})
	assert.ErrorIs(t, err, market.ErrDataUnavailable)

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	t.Cleanup(garbled.Close)
	_, err = NewClientURL("tok", garbled.URL).GetCandles(ctx, CandlesRequest{Instrument: "EUR_USD", Count: 2})
	require.Error(t, err)
	assert.NotErrorIs(t, err, market.ErrDataUnavailable)
}

func TestFeedAndRates(t *testing.T) {
	t.Parallel()

	s := &server{byInstr: map[string][]apiCandle{
		"EUR_USD": {
			{Complete: true, Time: "2024-01-01T10:00:00Z", Mid: mid("1.0850", "1.0860", "1.0840", "1.0855")},
			{Complete: true, Time: "2024-01-01T10:01:00Z", Mid: mid("1.0855", "1.0870", "1.0850", "1.0865")},
		},
		"USD_JPY": {
			{Complete: true, Time: "2024-01-01T10:01:00Z", Mid: mid("150.00", "150.10", "149.90", "150.00")},
		},
		"GBP_USD": {
			{Complete: false, Time: "2024-01-01T10:01:00Z", Mid: mid("1.27", "1.28", "1.26", "1.27")},
		},
	}}
	feed := &Feed{Client: s.start(t), Granularity: M1}
	ctx := context.Background()

	c, err := feed.LatestCandle(ctx, "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0865, c.Close)

	_, err = feed.LatestCandle(ctx, "GBP_USD")
	assert.ErrorIs(t, err, market.ErrDataUnavailable)

	hist, err := feed.History(ctx, "EUR_USD", 30)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	rates := Rates{Feed: feed}
	r, err := rates.QuoteToAccount(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0865, r)

	r, err = rates.QuoteToAccount(ctx, "JPY", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 1/150.0, r, 1e-12)

	r, err = rates.QuoteToAccount(ctx, "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	_, err = rates.QuoteToAccount(ctx, "NZD", "USD")
	assert.ErrorIs(t, err, market.ErrDataUnavailable)

	// USD to GBP goes through GBP_USD, which has no completed candle.
	meta, err := market.Lookup("EUR_USD")
	require.NoError(t, err)
	_, err = market.ResolveRate(ctx, meta, "GBP", 1.08, rates)
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	t.Parallel()

	s := &server{byInstr: map[string][]apiCandle{
		"USD_JPY": {
			{Complete: true, Time: "2024-01-01T10:00:00Z", Mid: mid("150.00", "150.10", "149.90", "150.00")},
			{Complete: true, Time: "2024-01-01T10:01:00Z", Mid: mid("150.00", "150.10", "149.90", "150.05")},
			{Complete: true, Time: "2024-01-01T10:02:00Z", Mid: mid("150.05", "150.10", "149.90", "150.02")},
		},
	}}
	client := s.start(t)

	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	got, err := client.Range(context.Background(), "USD_JPY", M1, from, from.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 150.05, got[1].Close)

	q := s.seen()
	require.Len(t, q, 1)
	assert.Contains(t, q[0], "count=5000")
	assert.NotContains(t, q[0], "to=")

	_, err = client.Range(context.Background(), "USD_JPY", M1, from, from)
	assert.Error(t, err)
}
