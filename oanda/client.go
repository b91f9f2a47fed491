// Package oanda reads candles from the OANDA v20 REST API and adapts them
// to the market feed and rate source interfaces. It never places orders.
package oanda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/scalper/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live environment
	LiveURL = "https://api-fxtrade.oanda.com"

	// MaxCount is the largest candle count the API returns per request.
	MaxCount = 5000
)

var ErrNoToken = errors.New("oanda: missing token")

// Granularity is the candle time frame.
type Granularity string

const (
	S5  Granularity = "S5"
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	H1  Granularity = "H1"
)

// Duration is the bar length; zero for unknown granularities.
func (g Granularity) Duration() time.Duration {
	switch g {
	case S5:
		return 5 * time.Second
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	}
	return 0
}

// PriceComponent selects which side of the book a candle describes.
type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

// Client is a read-only OANDA API client.
type Client struct {
	baseURL string
	token   string
	rest    *resty.Client
}

// NewClient creates a client for the practice or live environment.
func NewClient(token string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}
	return NewClientURL(token, baseURL)
}

// NewClientURL creates a client against an explicit API root.
func NewClientURL(token, baseURL string) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetLogger(log.WithField("component", "oanda"))
	if token != "" {
		rest.SetAuthToken(token)
	}
	return &Client{baseURL: baseURL, token: token, rest: rest}
}

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string
	Price       PriceComponent // default MidPrice
	Granularity Granularity    // default M1
	Count       int            // when set, To is not sent

	From time.Time
	To   time.Time

	// IncludeIncomplete keeps the still-forming last candle.
	IncludeIncomplete bool
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches candles, oldest first.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}
	if _, err := market.Lookup(req.Instrument); err != nil {
		return nil, fmt.Errorf("oanda: %w", err)
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = M1
	}

	if req.Count > MaxCount {
		return nil, fmt.Errorf("oanda: count %d exceeds %d", req.Count, MaxCount)
	}
	params := map[string]string{
		"price":       string(req.Price),
		"granularity": string(req.Granularity),
	}
	if req.Count > 0 {
		params["count"] = strconv.Itoa(req.Count)
	}
	if !req.From.IsZero() {
		params["from"] = req.From.UTC().Format(time.RFC3339Nano)
	}
	// The API refuses from, to and count together.
	if !req.To.IsZero() && req.Count == 0 {
		params["to"] = req.To.UTC().Format(time.RFC3339Nano)
	}

	var apiResp candlesResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("instrument", req.Instrument).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(&apiResp).
		Get("/v3/instruments/{instrument}/candles")
	if err != nil {
		if resp == nil || resp.RawResponse == nil {
			return nil, fmt.Errorf("%w: %v", market.ErrDataUnavailable, err)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("oanda candles http %d: %s", resp.StatusCode(), resp.String())
		if resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", market.ErrDataUnavailable, err)
		}
		return nil, err
	}

	candles := make([]market.Candle, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		if !ac.Complete && !req.IncludeIncomplete {
			continue
		}
		c, err := toCandle(ac, req.Price)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func toCandle(ac apiCandle, price PriceComponent) (market.Candle, error) {
	t, err := time.Parse(time.RFC3339Nano, ac.Time)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse time %s: %w", ac.Time, err)
	}

	var d *candleData
	switch price {
	case BidPrice:
		d = ac.Bid
	case AskPrice:
		d = ac.Ask
	default:
		d = ac.Mid
	}
	if d == nil {
		return market.Candle{}, fmt.Errorf("candle %s has no %s prices", ac.Time, price)
	}

	var vals [4]float64
	for i, s := range []string{d.O, d.H, d.L, d.C} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("parse price %q: %w", s, err)
		}
		vals[i] = v
	}
	return market.Candle{
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Time:   t.UTC(),
		Volume: float64(ac.Volume),
	}, nil
}

// Range downloads completed candles in [from, to), paging MaxCount at a
// time.
func (c *Client) Range(ctx context.Context, instrument string, g Granularity, from, to time.Time) ([]market.Candle, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("oanda: from %s is not before to %s", from, to)
	}

	var out []market.Candle
	cur := from
	for cur.Before(to) {
		page, err := c.GetCandles(ctx, CandlesRequest{
			Instrument:  instrument,
			Granularity: g,
			From:        cur,
			Count:       MaxCount,
		})
		if err != nil {
			return out, err
		}

		last := cur
		for _, cd := range page {
			if !cd.Time.Before(to) {
				return out, nil
			}
			if cd.Time.Before(cur) {
				continue
			}
			out = append(out, cd)
			last = cd.Time
		}
		if len(page) < MaxCount || !last.After(cur) {
			break
		}
		cur = last.Add(time.Nanosecond)
	}
	return out, nil
}
