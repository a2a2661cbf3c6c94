package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	"github.com/openfx/trend-trader/internal/indicators"
	"github.com/openfx/trend-trader/pkg/types"
)

// ATRTrendFollower trades pullbacks inside an established trend.
//
// Entry: price above EMA with RSI freshly crossing into oversold (buy),
// mirrored for sell. Stop at ATR multiple below/above entry, target at
// twice the stop distance.
type ATRTrendFollower struct {
	cfg  config.StrategyConfig
	feed *datafeed.Feed

	mu      sync.RWMutex
	lastATR map[string]float64
}

// NewATRTrendFollower creates the strategy over the given price feed.
func NewATRTrendFollower(cfg config.StrategyConfig, feed *datafeed.Feed) *ATRTrendFollower {
	return &ATRTrendFollower{
		cfg:     cfg,
		feed:    feed,
		lastATR: make(map[string]float64),
	}
}

// GetName returns the strategy name.
func (s *ATRTrendFollower) GetName() string {
	return "ATR Trend Follower"
}

// NextSignal evaluates one symbol over its buffered history. Evaluation is
// a full recompute over the window, so repeated calls within one candle
// are idempotent.
func (s *ATRTrendFollower) NextSignal(ctx context.Context, symbol string) (*types.TradeSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := s.feed.History(symbol)
	required := s.cfg.EMAPeriod
	if s.cfg.RSIPeriod+1 > required {
		required = s.cfg.RSIPeriod + 1
	}
	if s.cfg.ATRPeriod > required {
		required = s.cfg.ATRPeriod
	}
	if len(window) < required+1 {
		return nil, fmt.Errorf("insufficient history for %s: %d candles, need %d", symbol, len(window), required+1)
	}

	ema, err := indicators.NewEMA(s.cfg.EMAPeriod).Calculate(window)
	if err != nil {
		return nil, err
	}
	rsi, err := indicators.NewRSI(s.cfg.RSIPeriod).Calculate(window)
	if err != nil {
		return nil, err
	}
	prevRSI, err := indicators.NewRSI(s.cfg.RSIPeriod).Calculate(window[:len(window)-1])
	if err != nil {
		return nil, err
	}
	atr, err := indicators.NewATR(s.cfg.ATRPeriod).Calculate(window)
	if err != nil {
		return nil, err
	}
	if atr <= 0 {
		return nil, fmt.Errorf("non-positive ATR for %s", symbol)
	}

	s.mu.Lock()
	s.lastATR[symbol] = atr
	s.mu.Unlock()

	close := window[len(window)-1].Close
	stopDistance := atr * s.cfg.ATRMultiplier

	// Buy: uptrend with RSI freshly crossing into oversold.
	if close > ema && rsi < s.cfg.RSIOversold && prevRSI >= s.cfg.RSIOversold {
		return &types.TradeSignal{
			Symbol:     symbol,
			Direction:  types.DirectionBuy,
			EntryPrice: close,
			StopLoss:   close - stopDistance,
			TakeProfit: close + 2*stopDistance,
			Rationale: fmt.Sprintf("uptrend pullback | price %.5f > EMA %.5f | RSI %.1f",
				close, ema, rsi),
		}, nil
	}

	// Sell: downtrend with RSI freshly crossing into overbought.
	if close < ema && rsi > s.cfg.RSIOverbought && prevRSI <= s.cfg.RSIOverbought {
		return &types.TradeSignal{
			Symbol:     symbol,
			Direction:  types.DirectionSell,
			EntryPrice: close,
			StopLoss:   close + stopDistance,
			TakeProfit: close - 2*stopDistance,
			Rationale: fmt.Sprintf("downtrend pullback | price %.5f < EMA %.5f | RSI %.1f",
				close, ema, rsi),
		}, nil
	}

	return nil, nil
}

// LatestATR returns the ATR from the symbol's most recent evaluation.
func (s *ATRTrendFollower) LatestATR(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	atr, ok := s.lastATR[symbol]
	return atr, ok
}
