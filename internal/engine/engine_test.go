package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/broker/paper"
	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/internal/execution"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/monitoring"
	"github.com/openfx/trend-trader/internal/notifications"
	"github.com/openfx/trend-trader/internal/risk"
	"github.com/openfx/trend-trader/pkg/types"
)

// cannedSignals returns one fixed signal per symbol.
type cannedSignals struct {
	signals map[string]*types.TradeSignal
	atr     float64
}

func (c *cannedSignals) NextSignal(_ context.Context, symbol string) (*types.TradeSignal, error) {
	return c.signals[symbol], nil
}

func (c *cannedSignals) LatestATR(string) (float64, bool) {
	return c.atr, c.atr > 0
}

func (c *cannedSignals) GetName() string { return "canned" }

func testConfig(symbols ...string) *config.Config {
	cfg := &config.Config{Symbols: symbols}
	cfg.Risk = config.RiskPolicy{
		RiskPerTradeFraction:     0.01,
		MaxDailyDrawdownFraction: 0.03,
		MaxOpenPositions:         3,
		MinFreeMarginRatio:       0.20,
		MaxSpreadPoints:          20,
	}
	cfg.Execution = config.ExecutionConfig{
		MaxRetries:        3,
		RetryBackoff:      config.Duration(time.Millisecond),
		TrailMultiple:     2.0,
		MaxSlippagePoints: 10,
		FillModes:         []broker.FillMode{broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket},
		OrderTag:          "trend-trader",
	}
	cfg.Strategy = config.StrategyConfig{Name: "atr_trend", Interval: "60", WindowSize: 300}
	cfg.Schedule = config.ScheduleConfig{ShutdownTimeout: config.Duration(time.Second)}
	return cfg
}

func seedSymbol(gw *paper.Gateway, symbol string, bid, ask float64) {
	gw.SetQuote(types.Quote{Symbol: symbol, Bid: bid, Ask: ask, Timestamp: time.Now()})
	gw.SetSpec(broker.SymbolSpec{
		Symbol:    symbol,
		PointSize: 0.0001,
		TickValue: 10.0,
		MinLot:    0.01,
		MaxLot:    100.0,
		LotStep:   0.01,
		SupportedModes: []broker.FillMode{
			broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket,
		},
	})
}

// recordingNotifier captures emitted events; safe for the engine's
// per-symbol goroutines.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Emit(event notifications.Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) byKind(kind notifications.EventKind) []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(t *testing.T, cfg *config.Config, gw broker.Gateway, signals *cannedSignals) *Engine {
	return newTestEngineNotified(t, cfg, gw, signals, notifications.Nop{})
}

func newTestEngineNotified(t *testing.T, cfg *config.Config, gw broker.Gateway, signals *cannedSignals, notifier notifications.Notifier) *Engine {
	t.Helper()
	log, err := logger.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	breaker := risk.NewDailyBreaker(cfg.Risk.MaxDailyDrawdownFraction, notifier, log)
	riskManager := risk.NewManager(cfg.Risk, gw, breaker, log)
	orders := execution.NewOrderManager(cfg.Execution, gw, log, notifier)
	feed := datafeed.NewFeed(gw, cfg.Strategy.Interval, cfg.Strategy.WindowSize)
	return New(cfg, gw, feed, signals, riskManager, orders, log, notifier, monitoring.NewHealthChecker())
}

func buySignalFor(symbol string) *types.TradeSignal {
	return &types.TradeSignal{
		Symbol:     symbol,
		Direction:  types.DirectionBuy,
		EntryPrice: 1.0851,
		StopLoss:   1.0801,
		TakeProfit: 1.0951,
	}
}

func TestRunCycleFillsValidSignal(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": buySignalFor("EURUSD")}}
	e := newTestEngine(t, testConfig("EURUSD"), gw, signals)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, OutcomeFilled, res.Outcome)
	assert.Equal(t, 1.0851, res.FilledPrice)
	assert.InDelta(t, 0.2, res.FilledLots, 1e-9) // 1% of 10000 over a 50-point stop

	positions, err := gw.GetOpenPositions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestRunCycleReportsNoSignal(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{}}
	e := newTestEngine(t, testConfig("EURUSD"), gw, signals)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSignal, report.Results[0].Outcome)
	assert.Equal(t, 0, report.FilledCount())
}

func TestRunCycleSkipsEntriesWhenBreakerTripped(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": buySignalFor("EURUSD")}}
	e := newTestEngine(t, testConfig("EURUSD"), gw, signals)

	// Trip the breaker against a richer baseline, then cycle.
	e.risk.Breaker().Update(broker.AccountSnapshot{Balance: 10500, Equity: 10500})

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Breaker.Tripped)
	assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome)
	assert.Equal(t, risk.ReasonBreakerTripped, report.Results[0].Reason)

	positions, err := gw.GetOpenPositions(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestRunCycleMaintainsStopsWhileTripped(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	// An open position from before the trip.
	_, err := gw.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Direction: types.DirectionBuy, Lots: 0.2,
		Price: 1.0800, StopLoss: 1.0750,
	})
	require.NoError(t, err)

	signals := &cannedSignals{atr: 0.0010}
	e := newTestEngine(t, testConfig("EURUSD"), gw, signals)
	e.risk.Breaker().Update(broker.AccountSnapshot{Balance: 11000, Equity: 11000})

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, report.Breaker.Tripped)

	// Bid 1.0850 less twice the ATR trails the stop from 1.0750 to 1.0830.
	assert.Equal(t, 1, report.Results[0].TrailingMoves)
	positions, err := gw.GetOpenPositions(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 1.0830, positions[0].StopLoss, 1e-9)
}

func TestRunCycleRejectsDuplicateSymbol(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": buySignalFor("EURUSD")}}
	e := newTestEngine(t, testConfig("EURUSD"), gw, signals)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFilled, report.Results[0].Outcome)

	// The same signal next cycle hits the open position.
	report, err = e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, report.Results[0].Outcome)
	assert.Equal(t, risk.ReasonDuplicatePosition, report.Results[0].Reason)
}

func TestRunCycleProcessesSymbolsConcurrently(t *testing.T) {
	gw := paper.NewGateway(100000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	seedSymbol(gw, "GBPUSD", 1.2650, 1.2651)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{
		"EURUSD": buySignalFor("EURUSD"),
		"GBPUSD": {
			Symbol: "GBPUSD", Direction: types.DirectionSell,
			EntryPrice: 1.2650, StopLoss: 1.2700, TakeProfit: 1.2550,
		},
	}}
	e := newTestEngine(t, testConfig("EURUSD", "GBPUSD"), gw, signals)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilledCount())

	// Results keep the configured symbol order regardless of finish order.
	assert.Equal(t, "EURUSD", report.Results[0].Symbol)
	assert.Equal(t, "GBPUSD", report.Results[1].Symbol)
}

// gatedGateway parks the first GetAccount call so a cycle can be held
// mid-flight while another is attempted.
type gatedGateway struct {
	*paper.Gateway
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedGateway) GetAccount(ctx context.Context) (broker.AccountSnapshot, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Gateway.GetAccount(ctx)
}

func TestRunCycleRefusesOverlap(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))
	gated := &gatedGateway{Gateway: gw, entered: make(chan struct{}), release: make(chan struct{})}

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": buySignalFor("EURUSD")}}
	e := newTestEngine(t, testConfig("EURUSD"), gated, signals)

	done := make(chan error, 1)
	go func() {
		_, err := e.RunCycle(context.Background())
		done <- err
	}()
	<-gated.entered

	// A second cycle arriving while the first is blocked on the venue must
	// be refused; two concurrent cycles would both pass the duplicate check
	// and submit twice on the same signal.
	_, err := e.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, "cycle_in_progress", tradeerrors.ReasonOf(err))

	close(gated.release)
	require.NoError(t, <-done)

	positions, err := gw.GetOpenPositions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	// With the first cycle finished, the engine accepts cycles again.
	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
}

func TestRunCycleRejectsMalformedSignal(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	// Stop above entry on a buy: bad geometry.
	bad := &types.TradeSignal{
		Symbol: "EURUSD", Direction: types.DirectionBuy,
		EntryPrice: 1.0851, StopLoss: 1.0900, TakeProfit: 1.0951,
	}
	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": bad}}
	notifier := &recordingNotifier{}
	e := newTestEngineNotified(t, testConfig("EURUSD"), gw, signals, notifier)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, "invalid_signal_geometry", res.Reason)
	require.Error(t, res.Err)
	assert.Equal(t, tradeerrors.CategoryInvalidSignal, tradeerrors.CategoryOf(res.Err))

	rejected := notifier.byKind(notifications.EventSignalRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "invalid_signal_geometry", rejected[0].Reason)

	positions, err := gw.GetOpenPositions(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestRunCycleReconcilesVenueClosedPositions(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	signals := &cannedSignals{signals: map[string]*types.TradeSignal{"EURUSD": buySignalFor("EURUSD")}}
	notifier := &recordingNotifier{}
	e := newTestEngineNotified(t, testConfig("EURUSD"), gw, signals, notifier)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFilled, report.Results[0].Outcome)
	require.Len(t, e.orders.OpenOrders(), 1)

	// The venue takes the position out (stop or target hit between cycles).
	require.NoError(t, gw.ClosePosition(context.Background(), "EURUSD", report.Results[0].OrderID))
	signals.signals = map[string]*types.TradeSignal{}

	_, err = e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.orders.OpenOrders())
	assert.Len(t, notifier.byKind(notifications.EventTradeClosed), 1)
}

func TestStopClosesPositionsWhenConfigured(t *testing.T) {
	gw := paper.NewGateway(10000)
	seedSymbol(gw, "EURUSD", 1.0850, 1.0851)
	require.NoError(t, gw.Connect(context.Background()))

	_, err := gw.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Direction: types.DirectionBuy, Lots: 0.2, Price: 1.0800,
	})
	require.NoError(t, err)

	cfg := testConfig("EURUSD")
	cfg.Schedule.CloseAllOnShutdown = true
	e := newTestEngine(t, cfg, gw, &cannedSignals{})

	require.NoError(t, e.Stop(context.Background()))

	positions, err := gw.GetOpenPositions(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, positions)
}
