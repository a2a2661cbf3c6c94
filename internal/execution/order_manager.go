package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/config"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/notifications"
	"github.com/openfx/trend-trader/internal/risk"
	"github.com/openfx/trend-trader/pkg/types"
)

// Result reports a completed submission: the venue's fill plus how the
// negotiation went.
type Result struct {
	Order    broker.OrderResult
	FillMode broker.FillMode
	Attempts int
}

// OrderState is the manager's record of a position it opened.
type OrderState struct {
	OrderID    string
	Symbol     string
	Direction  types.Direction
	Lots       float64
	EntryPrice float64
	StopLoss   float64
	OpenedAt   time.Time
}

// OrderManager owns order entry and stop maintenance. Submissions negotiate
// the fill mode per symbol: the first mode a symbol accepts is cached and
// tried first on subsequent orders.
type OrderManager struct {
	cfg      config.ExecutionConfig
	gateway  broker.Gateway
	log      *logger.Logger
	notifier notifications.Notifier
	sleep    func(time.Duration)

	mu        sync.Mutex
	preferred map[string]broker.FillMode
	open      map[string]*OrderState
}

// NewOrderManager wires an order manager over the given gateway.
func NewOrderManager(cfg config.ExecutionConfig, gateway broker.Gateway, log *logger.Logger, notifier notifications.Notifier) *OrderManager {
	return &OrderManager{
		cfg:       cfg,
		gateway:   gateway,
		log:       log,
		notifier:  notifier,
		sleep:     time.Sleep,
		preferred: make(map[string]broker.FillMode),
		open:      make(map[string]*OrderState),
	}
}

// Execute submits a sized order, negotiating the fill mode and retrying
// requotes. The retry budget is per fill mode: switching to the next mode
// after an unsupported-fill rejection starts a fresh budget. A transient
// venue failure ends the submission with a single failed outcome; blind
// resubmission after a timeout risks a duplicate position.
func (om *OrderManager) Execute(ctx context.Context, sized risk.SizedOrder, spec broker.SymbolSpec) (Result, error) {
	signal := sized.Signal
	modes := om.candidateModes(spec)
	if len(modes) == 0 {
		return Result{}, tradeerrors.New(tradeerrors.CategoryFatal, "execution", "submit_order",
			"no_fill_modes", "no fill mode is both configured and supported by the symbol")
	}

	totalAttempts := 0
	for _, mode := range modes {
		for attempt := 1; attempt <= om.cfg.MaxRetries; attempt++ {
			totalAttempts++

			// Requotes are retried against a fresh quote, never the stale price.
			quote, err := om.gateway.GetQuote(ctx, signal.Symbol)
			if err != nil {
				return Result{}, om.fail(signal, tradeerrors.NewTransient("execution", "submit_order", "quote_unavailable", err))
			}

			req := broker.OrderRequest{
				Symbol:     signal.Symbol,
				Direction:  signal.Direction,
				Lots:       sized.LotSize,
				Price:      entryPrice(signal.Direction, quote),
				StopLoss:   signal.StopLoss,
				TakeProfit: signal.TakeProfit,
				FillMode:   mode,
				Slippage:   om.cfg.MaxSlippagePoints,
				LinkID:     fmt.Sprintf("%s-%s", om.cfg.OrderTag, uuid.New().String()[:13]),
				Comment:    om.cfg.OrderTag,
			}

			res, err := om.gateway.SubmitOrder(ctx, req)
			if err == nil {
				if res.Status == broker.OrderStatusRejected {
					return Result{}, om.fail(signal, tradeerrors.NewValidationRejected(
						"execution", "submit_order", "order_rejected", "venue rejected the order"))
				}
				om.recordFill(signal, sized.LotSize, res)
				om.setPreferredMode(signal.Symbol, mode)
				return Result{Order: res, FillMode: mode, Attempts: totalAttempts}, nil
			}

			switch {
			case broker.IsRequote(err):
				om.log.Warning("%s requote on attempt %d/%d (%s), retrying with fresh quote",
					signal.Symbol, attempt, om.cfg.MaxRetries, mode)
				if attempt < om.cfg.MaxRetries {
					om.sleep(om.cfg.RetryBackoff.Std())
				}
			case broker.IsUnsupportedFill(err):
				om.log.Info("%s does not accept fill mode %s, trying next", signal.Symbol, mode)
				attempt = om.cfg.MaxRetries // advance to the next mode with a fresh budget
			case broker.IsFatal(err):
				return Result{}, om.fail(signal, tradeerrors.NewFatal("execution", "submit_order", "venue_fatal", err))
			case broker.ClassOf(err) == broker.ClassRejected:
				return Result{}, om.fail(signal, tradeerrors.NewValidationRejected(
					"execution", "submit_order", "order_rejected", err.Error()))
			default:
				return Result{}, om.fail(signal, tradeerrors.NewTransient("execution", "submit_order", "venue_unreachable", err))
			}
		}
	}

	return Result{}, om.fail(signal, tradeerrors.New(tradeerrors.CategoryTransient, "execution", "submit_order",
		"execution_exhausted", fmt.Sprintf("no fill after %d attempts across %d fill modes", totalAttempts, len(modes))))
}

// candidateModes intersects the configured fill-mode preference list with
// the symbol's supported modes, putting a previously negotiated mode first.
func (om *OrderManager) candidateModes(spec broker.SymbolSpec) []broker.FillMode {
	supported := func(mode broker.FillMode) bool {
		if len(spec.SupportedModes) == 0 {
			return true
		}
		for _, m := range spec.SupportedModes {
			if m == mode {
				return true
			}
		}
		return false
	}

	om.mu.Lock()
	cached, hasCached := om.preferred[spec.Symbol]
	om.mu.Unlock()

	var modes []broker.FillMode
	if hasCached && supported(cached) {
		modes = append(modes, cached)
	}
	for _, mode := range om.cfg.FillModes {
		if !supported(mode) {
			continue
		}
		if hasCached && mode == cached {
			continue
		}
		modes = append(modes, mode)
	}
	return modes
}

func (om *OrderManager) setPreferredMode(symbol string, mode broker.FillMode) {
	om.mu.Lock()
	om.preferred[symbol] = mode
	om.mu.Unlock()
}

func (om *OrderManager) recordFill(signal types.TradeSignal, lots float64, res broker.OrderResult) {
	om.mu.Lock()
	om.open[res.OrderID] = &OrderState{
		OrderID:    res.OrderID,
		Symbol:     signal.Symbol,
		Direction:  signal.Direction,
		Lots:       res.FilledLots,
		EntryPrice: res.FilledPrice,
		StopLoss:   signal.StopLoss,
		OpenedAt:   time.Now(),
	}
	om.mu.Unlock()

	om.log.LogTrade("OPEN "+signal.Direction.String(), signal.Symbol, lots,
		res.FilledPrice, signal.StopLoss, signal.TakeProfit, res.OrderID, signal.Rationale)
	om.notify(notifications.Event{
		Kind:    notifications.EventTradeOpened,
		Symbol:  signal.Symbol,
		Message: fmt.Sprintf("%s %s %.4f lots @ %.5f", signal.Direction, signal.Symbol, res.FilledLots, res.FilledPrice),
		Time:    time.Now(),
	})
}

func (om *OrderManager) fail(signal types.TradeSignal, err *tradeerrors.TradeError) error {
	om.log.LogError(fmt.Sprintf("execution: %s %s", signal.Direction, signal.Symbol), err)
	om.notify(notifications.Event{
		Kind:    notifications.EventOrderFailed,
		Symbol:  signal.Symbol,
		Reason:  err.ReasonCode,
		Message: err.Message,
		Time:    time.Now(),
	})
	return err
}

func (om *OrderManager) notify(event notifications.Event) {
	if om.notifier != nil {
		om.notifier.Emit(event)
	}
}

// OpenOrders returns a snapshot of the positions this manager opened.
func (om *OrderManager) OpenOrders() []OrderState {
	om.mu.Lock()
	defer om.mu.Unlock()
	out := make([]OrderState, 0, len(om.open))
	for _, s := range om.open {
		out = append(out, *s)
	}
	return out
}

// Forget drops a position from the manager's records, typically after the
// venue reports it closed.
func (om *OrderManager) Forget(orderID string) {
	om.mu.Lock()
	delete(om.open, orderID)
	om.mu.Unlock()
}

// Reconcile drops tracked orders for the symbol that the venue no longer
// reports: the position was closed venue-side by a stop or target hit.
func (om *OrderManager) Reconcile(symbol string, positions []broker.Position) {
	live := make(map[string]bool, len(positions))
	for _, pos := range positions {
		live[pos.OrderID] = true
	}

	om.mu.Lock()
	var closed []*OrderState
	for id, state := range om.open {
		if state.Symbol == symbol && !live[id] {
			closed = append(closed, state)
			delete(om.open, id)
		}
	}
	om.mu.Unlock()

	for _, state := range closed {
		om.log.Trade("CLOSE %s | %s %.2f lots | Order: %s | closed at venue",
			state.Symbol, state.Direction, state.Lots, state.OrderID)
		om.notify(notifications.Event{
			Kind:    notifications.EventTradeClosed,
			Symbol:  state.Symbol,
			Message: fmt.Sprintf("position %s closed at the venue", state.OrderID),
			Time:    time.Now(),
		})
	}
}

func entryPrice(direction types.Direction, quote types.Quote) float64 {
	if direction == types.DirectionBuy {
		return quote.Ask
	}
	return quote.Bid
}
