package broker

import (
	"context"
	"time"

	"github.com/openfx/trend-trader/pkg/types"
)

// FillMode is a venue order-execution semantic. Venues differ in which
// modes a symbol accepts; the order manager negotiates the mode per symbol.
type FillMode string

const (
	FillModeIOC    FillMode = "IOC"    // immediate or cancel
	FillModeFOK    FillMode = "FOK"    // fill or kill
	FillModeMarket FillMode = "MARKET" // plain market execution
)

// AccountSnapshot holds the account figures a trading cycle decides on.
// It is captured once per cycle so every check in the cycle reads the
// same numbers.
type AccountSnapshot struct {
	Balance           float64
	Equity            float64
	FreeMarginRatio   float64
	OpenPositionCount int
	Timestamp         time.Time
}

// SymbolSpec holds the venue's static contract parameters for a symbol.
type SymbolSpec struct {
	Symbol         string
	PointSize      float64 // smallest price increment expressed as price
	TickValue      float64 // account-currency value of one point per lot
	MinLot         float64
	MaxLot         float64
	LotStep        float64
	SupportedModes []FillMode // ordered by venue preference
}

// Position is an open position as reported by the venue.
type Position struct {
	OrderID    string
	Symbol     string
	Direction  types.Direction
	Lots       float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Profit     float64
	OpenedAt   time.Time
}

// OrderRequest is a single submission attempt.
type OrderRequest struct {
	Symbol     string
	Direction  types.Direction
	Lots       float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	FillMode   FillMode
	Slippage   float64 // max deviation in points
	LinkID     string  // caller-assigned id, unique per submission attempt
	Comment    string
}

// OrderStatus is the terminal state of a submission attempt.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderResult reports the outcome of a submission attempt.
type OrderResult struct {
	Status      OrderStatus
	OrderID     string
	FilledPrice float64
	FilledLots  float64
}

// KlineParams selects a window of price history.
type KlineParams struct {
	Symbol   string
	Interval string
	Limit    int
}

// Gateway is the venue boundary: quotes, account state, positions, and
// order entry. Calls may fail with a classified *Error; the risk and
// execution layers branch on the class, never on venue-specific codes.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect() error

	GetQuote(ctx context.Context, symbol string) (types.Quote, error)
	GetAccount(ctx context.Context) (AccountSnapshot, error)
	GetOpenPositions(ctx context.Context, symbol string) ([]Position, error)
	GetSymbolSpec(ctx context.Context, symbol string) (SymbolSpec, error)
	GetKlines(ctx context.Context, params KlineParams) ([]types.OHLCV, error)

	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error
	ClosePosition(ctx context.Context, symbol, orderID string) error
}
