package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/internal/execution"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/monitoring"
	"github.com/openfx/trend-trader/internal/notifications"
	"github.com/openfx/trend-trader/internal/risk"
	"github.com/openfx/trend-trader/internal/strategy"
)

// Engine drives the trading cycle: refresh data, maintain trailing stops,
// evaluate signals, validate, size, and submit. Symbols run concurrently
// within a cycle; order submissions are serialized so the circuit breaker
// is re-checked against the latest state before each commit.
type Engine struct {
	cfg      *config.Config
	gateway  broker.Gateway
	feed     *datafeed.Feed
	signals  strategy.SignalSource
	risk     *risk.Manager
	orders   *execution.OrderManager
	log      *logger.Logger
	notifier notifications.Notifier
	health   *monitoring.HealthChecker

	submitMu      sync.Mutex
	cycleInFlight atomic.Bool
}

// New assembles an engine from its collaborators.
func New(cfg *config.Config, gateway broker.Gateway, feed *datafeed.Feed, signals strategy.SignalSource,
	riskManager *risk.Manager, orders *execution.OrderManager, log *logger.Logger,
	notifier notifications.Notifier, health *monitoring.HealthChecker) *Engine {
	return &Engine{
		cfg:      cfg,
		gateway:  gateway,
		feed:     feed,
		signals:  signals,
		risk:     riskManager,
		orders:   orders,
		log:      log,
		notifier: notifier,
		health:   health,
	}
}

// Start connects the gateway and preloads price history.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect gateway: %w", err)
	}
	e.health.SetConnected(true)

	if err := e.feed.Init(ctx, e.cfg.Symbols); err != nil {
		return fmt.Errorf("failed to preload price history: %w", err)
	}

	e.log.Status("Engine started | strategy: %s | symbols: %v", e.signals.GetName(), e.cfg.Symbols)
	e.notifier.Emit(notifications.Event{
		Kind:    notifications.EventEngineStarted,
		Message: fmt.Sprintf("trading %v with %s", e.cfg.Symbols, e.signals.GetName()),
		Time:    time.Now(),
	})
	return nil
}

// Stop shuts the engine down. In-flight work has completed by the time the
// scheduler calls Stop; this closes positions if configured and disconnects.
func (e *Engine) Stop(ctx context.Context) error {
	var closeErr error
	if e.cfg.Schedule.CloseAllOnShutdown {
		closeErr = e.orders.CloseAll(ctx, e.cfg.Schedule.ShutdownTimeout.Std())
		if closeErr != nil {
			e.log.LogError("shutdown close-all", closeErr)
		}
	}

	e.notifier.Emit(notifications.Event{
		Kind: notifications.EventEngineStopped,
		Time: time.Now(),
	})
	e.health.SetConnected(false)
	if err := e.gateway.Disconnect(); err != nil {
		e.log.LogError("gateway disconnect", err)
	}
	e.log.Status("Engine stopped")
	return closeErr
}

// RunCycle executes one full trading cycle and reports what happened. The
// account is snapshotted once at the top so every symbol's checks read the
// same numbers. Cycles never overlap: a call arriving while one is still
// running is refused, because two concurrent cycles would each pass the
// duplicate-position check before either submission lands.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.cycleInFlight.CompareAndSwap(false, true) {
		return CycleReport{}, tradeerrors.New(tradeerrors.CategoryTransient, "engine", "run_cycle",
			"cycle_in_progress", "previous cycle still running, skipping")
	}
	defer e.cycleInFlight.Store(false)

	started := time.Now()

	snapshot, err := e.gateway.GetAccount(ctx)
	if err != nil {
		e.health.RecordError(err)
		monitoring.RecordError(string(tradeerrors.CategoryOf(err)))
		return CycleReport{}, fmt.Errorf("failed to snapshot account: %w", err)
	}

	tripped := e.risk.Breaker().Update(snapshot)
	breakerState := e.risk.Breaker().State()
	monitoring.UpdateBreaker(tripped)
	monitoring.UpdateAccount(snapshot.Equity, breakerState.Drawdown)

	results := make([]SymbolResult, len(e.cfg.Symbols))
	var wg sync.WaitGroup
	for i, symbol := range e.cfg.Symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i] = e.processSymbol(ctx, symbol, snapshot, tripped)
		}(i, symbol)
	}
	wg.Wait()

	report := CycleReport{
		StartedAt: started,
		Duration:  time.Since(started),
		Equity:    snapshot.Equity,
		Balance:   snapshot.Balance,
		Breaker:   e.risk.Breaker().State(),
		Results:   results,
	}
	e.health.RecordCycle(snapshot.Equity, report.Breaker.Tripped)
	e.log.Status("Cycle done in %s | equity %.2f | filled %d", report.Duration.Round(time.Millisecond),
		report.Equity, report.FilledCount())
	return report, nil
}

// processSymbol runs one symbol's pipeline: refresh history, maintain
// stops on open positions, then look for a new entry. Stop maintenance
// runs even while the breaker is tripped; abandoning open positions would
// add risk, not reduce it.
func (e *Engine) processSymbol(ctx context.Context, symbol string, snapshot broker.AccountSnapshot, tripped bool) SymbolResult {
	result := SymbolResult{Symbol: symbol}

	if err := e.feed.Update(ctx, symbol); err != nil {
		e.log.LogError(fmt.Sprintf("feed update %s", symbol), err)
		result.Outcome = OutcomeFailed
		result.Reason = "feed_unavailable"
		result.Err = err
		return result
	}

	signal, err := e.signals.NextSignal(ctx, symbol)
	if err != nil {
		e.log.LogError(fmt.Sprintf("strategy %s", symbol), err)
		result.Outcome = OutcomeFailed
		result.Reason = tradeerrors.ReasonOf(err)
		result.Err = err
		return result
	}

	result.TrailingMoves = e.maintainStops(ctx, symbol)

	if tripped {
		result.Outcome = OutcomeSkipped
		result.Reason = risk.ReasonBreakerTripped
		return result
	}
	if signal == nil {
		result.Outcome = OutcomeNoSignal
		return result
	}

	if err := signal.Validate(); err != nil {
		verr := tradeerrors.NewInvalidSignal("engine", "validate_signal", "invalid_signal_geometry", err.Error())
		e.log.LogWarning("signal", "%s malformed: %v", symbol, err)
		e.rejectSignal(symbol, verr.ReasonCode)
		result.Outcome = OutcomeRejected
		result.Reason = verr.ReasonCode
		result.Err = verr
		return result
	}

	ok, reason := e.risk.ValidateSignal(ctx, *signal, snapshot)
	if !ok {
		e.log.Info("%s signal rejected: %s", symbol, reason)
		e.rejectSignal(symbol, reason)
		result.Outcome = OutcomeRejected
		result.Reason = reason
		return result
	}

	spec, err := e.gateway.GetSymbolSpec(ctx, symbol)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = "spec_unavailable"
		result.Err = err
		return result
	}
	sized, err := e.risk.ComputeLotSize(*signal, snapshot, spec)
	if err != nil {
		e.rejectSignal(symbol, tradeerrors.ReasonOf(err))
		result.Outcome = OutcomeRejected
		result.Reason = tradeerrors.ReasonOf(err)
		result.Err = err
		return result
	}

	return e.submit(ctx, sized, spec)
}

// rejectSignal records one rejection: metric plus the single structured
// event every rejected signal owes the notification sink.
func (e *Engine) rejectSignal(symbol, reason string) {
	monitoring.RecordRejection(symbol, reason)
	e.notifier.Emit(notifications.Event{
		Kind:   notifications.EventSignalRejected,
		Symbol: symbol,
		Reason: reason,
		Time:   time.Now(),
	})
}

// submit serializes order entry across symbols. The breaker is re-checked
// inside the lock: a trip caused by another symbol's fill in this same
// cycle must block the order.
func (e *Engine) submit(ctx context.Context, sized risk.SizedOrder, spec broker.SymbolSpec) SymbolResult {
	result := SymbolResult{Symbol: sized.Signal.Symbol}

	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	if e.risk.Breaker().Tripped() {
		berr := tradeerrors.NewCircuitBreakerTripped("engine", "submit_order")
		result.Outcome = OutcomeRejected
		result.Reason = berr.ReasonCode
		result.Err = berr
		return result
	}

	res, err := e.orders.Execute(ctx, sized, spec)
	if err != nil {
		monitoring.RecordError(string(tradeerrors.CategoryOf(err)))
		result.Outcome = OutcomeFailed
		result.Reason = tradeerrors.ReasonOf(err)
		result.Err = err
		return result
	}

	monitoring.RecordTrade(sized.Signal.Symbol, sized.Signal.Direction.String(), res.Order.FilledLots, res.Attempts)
	result.Outcome = OutcomeFilled
	result.Direction = sized.Signal.Direction.String()
	result.OrderID = res.Order.OrderID
	result.FilledPrice = res.Order.FilledPrice
	result.FilledLots = res.Order.FilledLots
	result.FillMode = string(res.FillMode)
	result.Attempts = res.Attempts
	return result
}

// maintainStops reconciles the order registry against the venue and trails
// stops on the symbol's open positions using the ATR from the latest
// strategy evaluation.
func (e *Engine) maintainStops(ctx context.Context, symbol string) int {
	positions, err := e.gateway.GetOpenPositions(ctx, symbol)
	if err != nil {
		e.log.LogError(fmt.Sprintf("positions %s", symbol), err)
		return 0
	}

	// Positions the venue no longer reports were closed by a stop or
	// target hit; drop them from the registry before trailing.
	e.orders.Reconcile(symbol, positions)

	if len(positions) == 0 {
		return 0
	}
	atr, ok := e.signals.LatestATR(symbol)
	if !ok {
		return 0
	}

	quote, err := e.gateway.GetQuote(ctx, symbol)
	if err != nil {
		e.log.LogError(fmt.Sprintf("quote %s", symbol), err)
		return 0
	}

	moves := 0
	for _, pos := range positions {
		moved, err := e.orders.UpdateTrailingStop(ctx, pos, quote, atr)
		if err != nil {
			monitoring.RecordError(string(tradeerrors.CategoryOf(err)))
			continue
		}
		if moved {
			moves++
			monitoring.RecordTrailingUpdate(symbol)
		}
	}
	return moves
}
