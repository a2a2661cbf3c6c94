// Package paper implements an in-memory venue for dry runs. Orders fill
// instantly at the quoted price; positions are marked to the seeded quotes.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/pkg/types"
)

// marginPerLot approximates margin consumed per open lot, as a fraction of
// balance, for the free-margin figure.
const marginPerLot = 0.05

// Gateway is a simulated venue. Quotes, specs and klines are seeded by the
// caller; account state evolves with fills and closes.
type Gateway struct {
	mu        sync.Mutex
	connected bool
	balance   float64
	quotes    map[string]types.Quote
	specs     map[string]broker.SymbolSpec
	klines    map[string][]types.OHLCV
	positions map[string]*broker.Position
	nextID    int
}

// NewGateway creates a paper venue with the given starting balance.
func NewGateway(balance float64) *Gateway {
	return &Gateway{
		balance:   balance,
		quotes:    make(map[string]types.Quote),
		specs:     make(map[string]broker.SymbolSpec),
		klines:    make(map[string][]types.OHLCV),
		positions: make(map[string]*broker.Position),
	}
}

// SetQuote seeds the current quote for a symbol.
func (g *Gateway) SetQuote(q types.Quote) {
	g.mu.Lock()
	g.quotes[q.Symbol] = q
	g.mu.Unlock()
}

// SetSpec seeds the contract parameters for a symbol.
func (g *Gateway) SetSpec(spec broker.SymbolSpec) {
	g.mu.Lock()
	g.specs[spec.Symbol] = spec
	g.mu.Unlock()
}

// SetKlines seeds price history for a symbol.
func (g *Gateway) SetKlines(symbol string, klines []types.OHLCV) {
	g.mu.Lock()
	g.klines[symbol] = klines
	g.mu.Unlock()
}

func (g *Gateway) Connect(context.Context) error {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	return nil
}

func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return nil
}

func (g *Gateway) GetQuote(_ context.Context, symbol string) (types.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.quotes[symbol]
	if !ok {
		return types.Quote{}, fmt.Errorf("no quote seeded for %s", symbol)
	}
	return q, nil
}

func (g *Gateway) GetAccount(context.Context) (broker.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	equity := g.balance
	usedLots := 0.0
	for _, pos := range g.positions {
		equity += g.unrealizedLocked(pos)
		usedLots += pos.Lots
	}
	freeMargin := 1.0 - usedLots*marginPerLot
	if freeMargin < 0 {
		freeMargin = 0
	}
	return broker.AccountSnapshot{
		Balance:           g.balance,
		Equity:            equity,
		FreeMarginRatio:   freeMargin,
		OpenPositionCount: len(g.positions),
		Timestamp:         time.Now(),
	}, nil
}

func (g *Gateway) GetOpenPositions(_ context.Context, symbol string) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []broker.Position
	for _, pos := range g.positions {
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		p := *pos
		p.Profit = g.unrealizedLocked(pos)
		out = append(out, p)
	}
	return out, nil
}

func (g *Gateway) GetSymbolSpec(_ context.Context, symbol string) (broker.SymbolSpec, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	spec, ok := g.specs[symbol]
	if !ok {
		return broker.SymbolSpec{}, fmt.Errorf("no spec seeded for %s", symbol)
	}
	return spec, nil
}

func (g *Gateway) GetKlines(_ context.Context, params broker.KlineParams) ([]types.OHLCV, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	klines := g.klines[params.Symbol]
	if params.Limit > 0 && len(klines) > params.Limit {
		klines = klines[len(klines)-params.Limit:]
	}
	out := make([]types.OHLCV, len(klines))
	copy(out, klines)
	return out, nil
}

// SubmitOrder fills immediately at the request price.
func (g *Gateway) SubmitOrder(_ context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return broker.OrderResult{}, broker.NewError(broker.ClassTransient, 0, "not connected")
	}
	if req.Lots <= 0 {
		return broker.OrderResult{}, broker.NewError(broker.ClassRejected, 0, "non-positive lot size")
	}

	g.nextID++
	orderID := fmt.Sprintf("paper-%d", g.nextID)
	g.positions[orderID] = &broker.Position{
		OrderID:    orderID,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Lots:       req.Lots,
		EntryPrice: req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   time.Now(),
	}
	return broker.OrderResult{
		Status:      broker.OrderStatusFilled,
		OrderID:     orderID,
		FilledPrice: req.Price,
		FilledLots:  req.Lots,
	}, nil
}

func (g *Gateway) ModifyStop(_ context.Context, _, orderID string, newStop float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.positions[orderID]
	if !ok {
		return broker.NewError(broker.ClassRejected, 0, "position not found")
	}
	pos.StopLoss = newStop
	return nil
}

func (g *Gateway) ClosePosition(_ context.Context, _, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.positions[orderID]
	if !ok {
		return broker.NewError(broker.ClassRejected, 0, "position not found")
	}
	g.balance += g.unrealizedLocked(pos)
	delete(g.positions, orderID)
	return nil
}

// unrealizedLocked marks a position to the seeded quote. Callers hold g.mu.
func (g *Gateway) unrealizedLocked(pos *broker.Position) float64 {
	quote, ok := g.quotes[pos.Symbol]
	if !ok {
		return 0
	}
	spec, ok := g.specs[pos.Symbol]
	if !ok || spec.PointSize <= 0 {
		return 0
	}

	var points float64
	if pos.Direction == types.DirectionBuy {
		points = (quote.Bid - pos.EntryPrice) / spec.PointSize
	} else {
		points = (pos.EntryPrice - quote.Ask) / spec.PointSize
	}
	return points * spec.TickValue * pos.Lots
}
