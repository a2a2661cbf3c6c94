// Package bybit adapts the Bybit v5 unified trading API to the gateway
// boundary. Every venue failure is translated into a classified error so
// callers never see raw retCodes.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/pkg/types"
)

// fillPollAttempts bounds how long a submission waits for the venue to
// report the order's terminal state.
const (
	fillPollAttempts = 5
	fillPollDelay    = 200 * time.Millisecond
)

// Gateway implements the venue boundary against Bybit.
type Gateway struct {
	http     *bybit_api.Client
	category string

	mu    sync.Mutex
	specs map[string]broker.SymbolSpec
}

// NewGateway creates a Bybit gateway for the configured environment.
func NewGateway(cfg Config) *Gateway {
	category := cfg.Category
	if category == "" {
		category = "linear"
	}
	return &Gateway{
		http:     newHTTPClient(cfg),
		category: category,
		specs:    make(map[string]broker.SymbolSpec),
	}
}

// Connect verifies credentials with a wallet query.
func (g *Gateway) Connect(ctx context.Context) error {
	_, err := g.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to bybit: %w", err)
	}
	return nil
}

func (g *Gateway) Disconnect() error { return nil }

// GetQuote fetches the best bid and ask for a symbol.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   symbol,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return types.Quote{}, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return types.Quote{}, err
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &tickerResult); err != nil {
		return types.Quote{}, err
	}
	if len(tickerResult.List) == 0 {
		return types.Quote{}, broker.NewError(broker.ClassRejected, retCodeSymbolNotFound,
			fmt.Sprintf("no ticker for %s", symbol))
	}

	ticker := tickerResult.List[0]
	return types.Quote{
		Symbol:    symbol,
		Bid:       parseFloat64(ticker.Bid1Price),
		Ask:       parseFloat64(ticker.Ask1Price),
		Timestamp: time.Now(),
	}, nil
}

// GetAccount snapshots the unified account and counts open positions.
func (g *Gateway) GetAccount(ctx context.Context) (broker.AccountSnapshot, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return broker.AccountSnapshot{}, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return broker.AccountSnapshot{}, err
	}

	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalWalletBalance    string `json:"totalWalletBalance"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &walletResult); err != nil {
		return broker.AccountSnapshot{}, err
	}
	if len(walletResult.List) == 0 {
		return broker.AccountSnapshot{}, broker.NewError(broker.ClassFatal, 0, "no account data returned")
	}

	wallet := walletResult.List[0]
	equity := parseFloat64(wallet.TotalEquity)
	available := parseFloat64(wallet.TotalAvailableBalance)
	freeMargin := 0.0
	if equity > 0 {
		freeMargin = available / equity
	}

	positions, err := g.GetOpenPositions(ctx, "")
	if err != nil {
		return broker.AccountSnapshot{}, err
	}

	return broker.AccountSnapshot{
		Balance:           parseFloat64(wallet.TotalWalletBalance),
		Equity:            equity,
		FreeMarginRatio:   freeMargin,
		OpenPositionCount: len(positions),
		Timestamp:         time.Now(),
	}, nil
}

// GetOpenPositions lists positions with non-zero size. An empty symbol
// lists the whole settle-coin universe.
func (g *Gateway) GetOpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	params := map[string]interface{}{
		"category": g.category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	} else {
		params["settleCoin"] = "USDT"
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return nil, err
	}

	var positionResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			EntryPrice    string `json:"avgPrice"`
			StopLoss      string `json:"stopLoss"`
			TakeProfit    string `json:"takeProfit"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			CreatedTime   string `json:"createdTime"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &positionResult); err != nil {
		return nil, err
	}

	var positions []broker.Position
	for _, p := range positionResult.List {
		size := parseFloat64(p.Size)
		if size == 0 {
			continue
		}
		direction := types.DirectionBuy
		if p.Side == "Sell" {
			direction = types.DirectionSell
		}
		positions = append(positions, broker.Position{
			// Bybit keys linear positions by symbol, not ticket.
			OrderID:    p.Symbol,
			Symbol:     p.Symbol,
			Direction:  direction,
			Lots:       size,
			EntryPrice: parseFloat64(p.EntryPrice),
			StopLoss:   parseFloat64(p.StopLoss),
			TakeProfit: parseFloat64(p.TakeProfit),
			Profit:     parseFloat64(p.UnrealisedPnl),
			OpenedAt:   time.UnixMilli(parseInt64(p.CreatedTime)),
		})
	}
	return positions, nil
}

// GetSymbolSpec fetches and caches the symbol's contract parameters.
func (g *Gateway) GetSymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error) {
	g.mu.Lock()
	if spec, ok := g.specs[symbol]; ok {
		g.mu.Unlock()
		return spec, nil
	}
	g.mu.Unlock()

	params := map[string]interface{}{
		"category": g.category,
		"symbol":   symbol,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return broker.SymbolSpec{}, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return broker.SymbolSpec{}, err
	}

	var infoResult struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				MinOrderQty string `json:"minOrderQty"`
				MaxOrderQty string `json:"maxOrderQty"`
				QtyStep     string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &infoResult); err != nil {
		return broker.SymbolSpec{}, err
	}
	if len(infoResult.List) == 0 {
		return broker.SymbolSpec{}, broker.NewError(broker.ClassRejected, retCodeSymbolNotFound,
			fmt.Sprintf("no instrument info for %s", symbol))
	}

	info := infoResult.List[0]
	tickSize := parseFloat64(info.PriceFilter.TickSize)
	spec := broker.SymbolSpec{
		Symbol:    symbol,
		PointSize: tickSize,
		// Linear contracts move one tick of quote currency per unit per tick.
		TickValue: tickSize,
		MinLot:    parseFloat64(info.LotSizeFilter.MinOrderQty),
		MaxLot:    parseFloat64(info.LotSizeFilter.MaxOrderQty),
		LotStep:   parseFloat64(info.LotSizeFilter.QtyStep),
		SupportedModes: []broker.FillMode{
			broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket,
		},
	}

	g.mu.Lock()
	g.specs[symbol] = spec
	g.mu.Unlock()
	return spec, nil
}

// GetKlines fetches candles, returned oldest first.
func (g *Gateway) GetKlines(ctx context.Context, kp broker.KlineParams) ([]types.OHLCV, error) {
	limit := kp.Limit
	if limit == 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   kp.Symbol,
		"interval": kp.Interval,
		"limit":    limit,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return nil, err
	}

	var klineResult struct {
		List [][]string `json:"list"`
	}
	if err := decodeResult(resp, &klineResult); err != nil {
		return nil, err
	}

	// Bybit returns newest first; flip to the chronological order the
	// indicators expect.
	klines := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 6 {
			continue
		}
		klines = append(klines, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}
	return klines, nil
}

// SubmitOrder places an order and waits for its terminal state. IOC and
// FOK are sent as marketable limits capped at the request price plus the
// slippage allowance; an unfilled cancel reports as a requote.
func (g *Gateway) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	spec, err := g.GetSymbolSpec(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	side := "Buy"
	if req.Direction == types.DirectionSell {
		side = "Sell"
	}

	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      req.Symbol,
		"side":        side,
		"qty":         formatFloat(req.Lots),
		"orderLinkId": req.LinkID,
	}
	if req.StopLoss > 0 {
		params["stopLoss"] = formatFloat(req.StopLoss)
	}
	if req.TakeProfit > 0 {
		params["takeProfit"] = formatFloat(req.TakeProfit)
	}

	switch req.FillMode {
	case broker.FillModeMarket:
		params["orderType"] = "Market"
	case broker.FillModeIOC, broker.FillModeFOK:
		params["orderType"] = "Limit"
		params["price"] = formatFloat(limitPrice(req, spec))
		params["timeInForce"] = string(req.FillMode)
	default:
		return broker.OrderResult{}, broker.NewError(broker.ClassUnsupportedFill, 0,
			fmt.Sprintf("fill mode %s not supported", req.FillMode))
	}

	result, err := g.http.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return broker.OrderResult{}, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return broker.OrderResult{}, err
	}

	var orderResult struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeResult(resp, &orderResult); err != nil {
		return broker.OrderResult{}, err
	}

	return g.awaitFill(ctx, req.Symbol, orderResult.OrderID)
}

// awaitFill polls the order until it reaches a terminal state.
func (g *Gateway) awaitFill(ctx context.Context, symbol, orderID string) (broker.OrderResult, error) {
	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return broker.OrderResult{}, broker.NewError(broker.ClassTransient, 0, ctx.Err().Error())
			case <-time.After(fillPollDelay):
			}
		}

		status, execQty, avgPrice, err := g.orderStatus(ctx, symbol, orderID)
		if err != nil {
			return broker.OrderResult{}, err
		}

		switch status {
		case "Filled", "PartiallyFilledCanceled":
			return broker.OrderResult{
				Status:      broker.OrderStatusFilled,
				OrderID:     orderID,
				FilledPrice: avgPrice,
				FilledLots:  execQty,
			}, nil
		case "Cancelled", "Deactivated":
			if execQty > 0 {
				return broker.OrderResult{
					Status:      broker.OrderStatusFilled,
					OrderID:     orderID,
					FilledPrice: avgPrice,
					FilledLots:  execQty,
				}, nil
			}
			// The marketable limit missed the market: price moved.
			return broker.OrderResult{}, broker.NewError(broker.ClassRequote, 0,
				fmt.Sprintf("order %s cancelled unfilled", orderID))
		case "Rejected":
			return broker.OrderResult{Status: broker.OrderStatusRejected, OrderID: orderID},
				broker.NewError(broker.ClassRejected, 0, fmt.Sprintf("order %s rejected", orderID))
		}
	}
	return broker.OrderResult{}, broker.NewError(broker.ClassTransient, 0,
		fmt.Sprintf("order %s still pending after %d polls", orderID, fillPollAttempts))
}

func (g *Gateway) orderStatus(ctx context.Context, symbol, orderID string) (status string, execQty, avgPrice float64, err error) {
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return "", 0, 0, broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	resp, err := checkResponse(result)
	if err != nil {
		return "", 0, 0, err
	}

	var orders struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderStatus string `json:"orderStatus"`
			CumExecQty  string `json:"cumExecQty"`
			AvgPrice    string `json:"avgPrice"`
		} `json:"list"`
	}
	if err := decodeResult(resp, &orders); err != nil {
		return "", 0, 0, err
	}
	for _, o := range orders.List {
		if o.OrderID == orderID {
			return o.OrderStatus, parseFloat64(o.CumExecQty), parseFloat64(o.AvgPrice), nil
		}
	}
	// Not in history yet: still live.
	return "New", 0, 0, nil
}

// ModifyStop moves the position's stop loss.
func (g *Gateway) ModifyStop(ctx context.Context, symbol, _ string, newStop float64) error {
	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      symbol,
		"stopLoss":    formatFloat(newStop),
		"positionIdx": 0,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	if err != nil {
		return broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	_, err = checkResponse(result)
	return err
}

// ClosePosition flattens the symbol with a reduce-only market order.
func (g *Gateway) ClosePosition(ctx context.Context, symbol, _ string) error {
	positions, err := g.GetOpenPositions(ctx, symbol)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	pos := positions[0]
	side := "Sell"
	if pos.Direction == types.DirectionSell {
		side = "Buy"
	}
	params := map[string]interface{}{
		"category":   g.category,
		"symbol":     symbol,
		"side":       side,
		"orderType":  "Market",
		"qty":        formatFloat(pos.Lots),
		"reduceOnly": true,
	}
	result, err := g.http.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return broker.NewError(broker.ClassTransient, 0, err.Error())
	}
	_, err = checkResponse(result)
	return err
}

// limitPrice caps the marketable limit at the request price plus the
// slippage allowance in the trade direction.
func limitPrice(req broker.OrderRequest, spec broker.SymbolSpec) float64 {
	allowance := req.Slippage * spec.PointSize
	if req.Direction == types.DirectionBuy {
		return req.Price + allowance
	}
	return req.Price - allowance
}

// checkResponse validates the envelope and retCode of a venue response.
func checkResponse(result interface{}) (*bybit_api.ServerResponse, error) {
	resp, ok := result.(*bybit_api.ServerResponse)
	if !ok {
		return nil, broker.NewError(broker.ClassFatal, 0, "unexpected response type from venue")
	}
	if err := classifyRetCode(resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	return resp, nil
}

// decodeResult re-marshals the untyped Result payload into target.
func decodeResult(resp *bybit_api.ServerResponse, target interface{}) error {
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return broker.NewError(broker.ClassFatal, 0, fmt.Sprintf("failed to marshal result: %v", err))
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return broker.NewError(broker.ClassFatal, 0, fmt.Sprintf("failed to unmarshal result: %v", err))
	}
	return nil
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
