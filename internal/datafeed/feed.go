package datafeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/pkg/types"
)

// Feed maintains a circular price-history buffer per symbol, refreshed
// from the gateway's kline endpoint.
type Feed struct {
	gateway  broker.Gateway
	interval string
	window   int

	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewFeed creates a feed keeping up to window candles per symbol at the
// given venue interval.
func NewFeed(gateway broker.Gateway, interval string, window int) *Feed {
	return &Feed{
		gateway:  gateway,
		interval: interval,
		window:   window,
		buffers:  make(map[string]*Buffer),
	}
}

// Init preloads history for every symbol. A symbol that cannot be loaded
// fails the whole call: the engine must not trade on empty history.
func (f *Feed) Init(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if err := f.Update(ctx, symbol); err != nil {
			return fmt.Errorf("failed to preload history for %s: %w", symbol, err)
		}
	}
	return nil
}

// Update fetches the latest klines for a symbol and folds them into its
// buffer.
func (f *Feed) Update(ctx context.Context, symbol string) error {
	klines, err := f.gateway.GetKlines(ctx, broker.KlineParams{
		Symbol:   symbol,
		Interval: f.interval,
		Limit:    f.window,
	})
	if err != nil {
		return fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	buf, ok := f.buffers[symbol]
	if !ok {
		buf = NewBuffer(f.window)
		f.buffers[symbol] = buf
	}
	for _, k := range klines {
		buf.Append(k)
	}
	return nil
}

// History returns the buffered candles for a symbol, oldest first.
func (f *Feed) History(symbol string) []types.OHLCV {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf, ok := f.buffers[symbol]
	if !ok {
		return nil
	}
	return buf.Window()
}

// Latest returns the newest candle for a symbol, if any.
func (f *Feed) Latest(symbol string) (types.OHLCV, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf, ok := f.buffers[symbol]
	if !ok {
		return types.OHLCV{}, false
	}
	return buf.Last()
}
