package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDataUnavailable signals that the feed could not supply a price this
// time. Callers retry on the next cycle.
var ErrDataUnavailable = errors.New("market data unavailable")

// Feed supplies the latest candle for an instrument on demand.
type Feed interface {
	LatestCandle(ctx context.Context, instrument string) (Candle, error)
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context, instrument string) (Candle, error)

func (f FeedFunc) LatestCandle(ctx context.Context, instrument string) (Candle, error) {
	return f(ctx, instrument)
}

// CandleStore is an in-memory Feed holding the last candle per instrument.
type CandleStore struct {
	mu      sync.RWMutex
	candles map[string]Candle
}

func NewCandleStore() *CandleStore {
	return &CandleStore{candles: make(map[string]Candle)}
}

func (cs *CandleStore) Set(instrument string, c Candle) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.candles[instrument] = c
}

func (cs *CandleStore) Delete(instrument string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.candles, instrument)
}

func (cs *CandleStore) LatestCandle(ctx context.Context, instrument string) (Candle, error) {
	if err := ctx.Err(); err != nil {
		return Candle{}, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.candles[instrument]
	if !ok {
		return Candle{}, fmt.Errorf("%w: no candle for %s", ErrDataUnavailable, instrument)
	}
	return c, nil
}
