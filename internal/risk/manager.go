package risk

import (
	"context"
	"math"
	"time"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/config"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/pkg/types"
)

// Rejection reason codes returned by ValidateSignal. These are stable
// identifiers: they appear in logs, metrics labels and notifications.
const (
	ReasonBreakerTripped       = "circuit_breaker_tripped"
	ReasonMaxPositions         = "max_positions_reached"
	ReasonDuplicatePosition    = "duplicate_position"
	ReasonSpreadTooWide        = "spread_too_wide"
	ReasonInsufficientMargin   = "insufficient_free_margin"
	ReasonOutsideWindow        = "outside_trading_window"
	ReasonQuoteUnavailable     = "quote_unavailable"
	ReasonPositionsUnavailable = "positions_unavailable"
)

// SizedOrder is a validated signal with its computed lot size attached.
type SizedOrder struct {
	Signal             types.TradeSignal
	LotSize            float64
	StopDistancePoints float64
	RiskAmount         float64
}

// Manager owns pre-trade validation and position sizing. All checks run
// against a single account snapshot taken at the top of the cycle, so one
// cycle sees one consistent view of the account.
type Manager struct {
	policy  config.RiskPolicy
	gateway broker.Gateway
	breaker *DailyBreaker
	log     *logger.Logger
	now     func() time.Time
}

// NewManager wires a risk manager over the given gateway and breaker.
func NewManager(policy config.RiskPolicy, gateway broker.Gateway, breaker *DailyBreaker, log *logger.Logger) *Manager {
	return &Manager{
		policy:  policy,
		gateway: gateway,
		breaker: breaker,
		log:     log,
		now:     time.Now,
	}
}

// Breaker exposes the daily circuit breaker for cycle-level updates.
func (m *Manager) Breaker() *DailyBreaker { return m.breaker }

// ValidateSignal runs the pre-trade checks in a fixed order and returns the
// first failing reason code. The order is deliberate: account-level gates
// (breaker, position count) come before per-symbol market checks so that a
// tripped breaker short-circuits without touching the venue.
func (m *Manager) ValidateSignal(ctx context.Context, signal types.TradeSignal, snapshot broker.AccountSnapshot) (bool, string) {
	if m.breaker.Tripped() {
		return false, ReasonBreakerTripped
	}

	if snapshot.OpenPositionCount >= m.policy.MaxOpenPositions {
		return false, ReasonMaxPositions
	}

	// Any open position on the symbol blocks a new entry, in either
	// direction. Exposure is managed per symbol, not netted.
	positions, err := m.gateway.GetOpenPositions(ctx, signal.Symbol)
	if err != nil {
		m.log.LogError("risk: fetch open positions", err)
		return false, ReasonPositionsUnavailable
	}
	if len(positions) > 0 {
		return false, ReasonDuplicatePosition
	}

	quote, err := m.gateway.GetQuote(ctx, signal.Symbol)
	if err != nil {
		m.log.LogError("risk: fetch quote", err)
		return false, ReasonQuoteUnavailable
	}
	spec, err := m.gateway.GetSymbolSpec(ctx, signal.Symbol)
	if err != nil {
		m.log.LogError("risk: fetch symbol spec", err)
		return false, ReasonQuoteUnavailable
	}
	if spread := quote.SpreadPoints(spec.PointSize); spread > m.policy.MaxSpreadPoints {
		m.log.Warning("%s spread %.1f points exceeds limit %.1f", signal.Symbol, spread, m.policy.MaxSpreadPoints)
		return false, ReasonSpreadTooWide
	}

	if snapshot.FreeMarginRatio < m.policy.MinFreeMarginRatio {
		return false, ReasonInsufficientMargin
	}

	if !m.policy.TradingWindow.Contains(m.now()) {
		return false, ReasonOutsideWindow
	}

	return true, ""
}

// ComputeLotSize sizes a position so that a stop-out loses a fixed fraction
// of account balance. The raw lot is floored to the symbol's lot step and
// clamped to its min/max bounds.
func (m *Manager) ComputeLotSize(signal types.TradeSignal, snapshot broker.AccountSnapshot, spec broker.SymbolSpec) (SizedOrder, error) {
	if spec.PointSize <= 0 || spec.TickValue <= 0 {
		return SizedOrder{}, tradeerrors.NewInvalidSignal("risk", "compute_lot_size",
			"bad_symbol_spec", "symbol spec has non-positive point size or tick value")
	}

	stopPoints := math.Abs(signal.EntryPrice-signal.StopLoss) / spec.PointSize
	if stopPoints <= 0 {
		return SizedOrder{}, tradeerrors.NewInvalidSignal("risk", "compute_lot_size",
			"zero_stop_distance", "stop loss coincides with entry price")
	}

	riskAmount := snapshot.Balance * m.policy.RiskPerTradeFraction
	rawLot := riskAmount / (stopPoints * spec.TickValue)

	lot := rawLot
	if spec.LotStep > 0 {
		lot = math.Floor(lot/spec.LotStep) * spec.LotStep
	}
	if lot < spec.MinLot {
		lot = spec.MinLot
	}
	if spec.MaxLot > 0 && lot > spec.MaxLot {
		lot = spec.MaxLot
	}

	m.log.Info("Sized %s %s | risk %.2f | stop %.1f points | lot %.4f (raw %.4f)",
		signal.Symbol, signal.Direction, riskAmount, stopPoints, lot, rawLot)

	return SizedOrder{
		Signal:             signal,
		LotSize:            lot,
		StopDistancePoints: stopPoints,
		RiskAmount:         riskAmount,
	}, nil
}
