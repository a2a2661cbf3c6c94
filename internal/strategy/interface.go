package strategy

import (
	"context"
	"fmt"

	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	"github.com/openfx/trend-trader/pkg/types"
)

// SignalSource produces at most one entry proposal per symbol per cycle.
type SignalSource interface {
	// NextSignal evaluates the symbol and returns a signal or nil.
	NextSignal(ctx context.Context, symbol string) (*types.TradeSignal, error)

	// LatestATR returns the volatility measure from the most recent
	// evaluation of the symbol, used for trailing-stop maintenance.
	LatestATR(symbol string) (float64, bool)

	// GetName returns the strategy name.
	GetName() string
}

// New creates the signal source named in the configuration.
func New(cfg config.StrategyConfig, feed *datafeed.Feed) (SignalSource, error) {
	switch cfg.Name {
	case "atr_trend":
		return NewATRTrendFollower(cfg, feed), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}
