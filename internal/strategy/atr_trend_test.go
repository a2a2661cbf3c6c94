package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfx/trend-trader/internal/broker/paper"
	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	"github.com/openfx/trend-trader/pkg/types"
)

func testStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		Name:          "atr_trend",
		Interval:      "60",
		WindowSize:    50,
		EMAPeriod:     5,
		RSIPeriod:     3,
		RSIOversold:   45,
		RSIOverbought: 55,
		ATRPeriod:     3,
		ATRMultiplier: 2.0,
	}
}

func candlesFromCloses(closes []float64) []types.OHLCV {
	out := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		out[i] = types.OHLCV{
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
			Timestamp: time.Unix(int64(i)*3600, 0),
		}
	}
	return out
}

func feedWithCloses(t *testing.T, symbol string, closes []float64) *datafeed.Feed {
	t.Helper()
	gw := paper.NewGateway(10000)
	gw.SetKlines(symbol, candlesFromCloses(closes))
	feed := datafeed.NewFeed(gw, "60", 50)
	require.NoError(t, feed.Init(context.Background(), []string{symbol}))
	return feed
}

func TestNextSignalBuysPullbackInUptrend(t *testing.T) {
	// A steady uptrend keeps price above the EMA; the final two-candle dip
	// drops the short RSI through the oversold line.
	closes := []float64{100, 103, 106, 109, 112, 115, 118, 121, 124, 127, 130, 127, 126}
	s := NewATRTrendFollower(testStrategyConfig(), feedWithCloses(t, "BTCUSDT", closes))

	signal, err := s.NextSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, types.DirectionBuy, signal.Direction)
	assert.Equal(t, 126.0, signal.EntryPrice)
	assert.Less(t, signal.StopLoss, signal.EntryPrice)
	assert.Greater(t, signal.TakeProfit, signal.EntryPrice)
	// Target sits twice the stop distance from entry.
	assert.InDelta(t, 2*(signal.EntryPrice-signal.StopLoss), signal.TakeProfit-signal.EntryPrice, 1e-9)
	require.NoError(t, signal.Validate())

	atr, ok := s.LatestATR("BTCUSDT")
	require.True(t, ok)
	assert.Greater(t, atr, 0.0)
}

func TestNextSignalSellsPullbackInDowntrend(t *testing.T) {
	closes := []float64{130, 127, 124, 121, 118, 115, 112, 109, 106, 103, 100, 103, 104}
	s := NewATRTrendFollower(testStrategyConfig(), feedWithCloses(t, "BTCUSDT", closes))

	signal, err := s.NextSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, types.DirectionSell, signal.Direction)
	assert.Greater(t, signal.StopLoss, signal.EntryPrice)
	assert.Less(t, signal.TakeProfit, signal.EntryPrice)
	require.NoError(t, signal.Validate())
}

func TestNextSignalQuietInSteadyTrend(t *testing.T) {
	// No pullback: RSI never crosses the oversold line.
	closes := []float64{100, 103, 106, 109, 112, 115, 118, 121, 124, 127, 130, 133, 136}
	s := NewATRTrendFollower(testStrategyConfig(), feedWithCloses(t, "BTCUSDT", closes))

	signal, err := s.NextSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestNextSignalIsIdempotentWithinCandle(t *testing.T) {
	closes := []float64{100, 103, 106, 109, 112, 115, 118, 121, 124, 127, 130, 127, 126}
	s := NewATRTrendFollower(testStrategyConfig(), feedWithCloses(t, "BTCUSDT", closes))

	first, err := s.NextSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	second, err := s.NextSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestNextSignalRequiresHistory(t *testing.T) {
	s := NewATRTrendFollower(testStrategyConfig(), feedWithCloses(t, "BTCUSDT", []float64{100, 101, 102}))

	_, err := s.NextSignal(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestNewSelectsStrategyByName(t *testing.T) {
	feed := feedWithCloses(t, "BTCUSDT", []float64{100, 101, 102})

	s, err := New(testStrategyConfig(), feed)
	require.NoError(t, err)
	assert.Equal(t, "ATR Trend Follower", s.GetName())

	cfg := testStrategyConfig()
	cfg.Name = "martingale"
	_, err = New(cfg, feed)
	assert.Error(t, err)
}
