package types

import "fmt"

// Direction is the side of a trade signal.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// TradeSignal is an entry proposal produced by a signal source.
// It is immutable once created and consumed exactly once by the risk manager.
type TradeSignal struct {
	Symbol     string
	Direction  Direction
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Rationale  string
}

// Validate checks the stop/target geometry: for a buy the stop must sit
// below the entry and the target above it, mirrored for a sell.
func (s *TradeSignal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal has no symbol")
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("signal for %s has non-positive entry price %.5f", s.Symbol, s.EntryPrice)
	}
	switch s.Direction {
	case DirectionBuy:
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit) {
			return fmt.Errorf("buy signal for %s violates stop < entry < target (%.5f, %.5f, %.5f)",
				s.Symbol, s.StopLoss, s.EntryPrice, s.TakeProfit)
		}
	case DirectionSell:
		if !(s.TakeProfit < s.EntryPrice && s.EntryPrice < s.StopLoss) {
			return fmt.Errorf("sell signal for %s violates target < entry < stop (%.5f, %.5f, %.5f)",
				s.Symbol, s.TakeProfit, s.EntryPrice, s.StopLoss)
		}
	default:
		return fmt.Errorf("signal for %s has unknown direction", s.Symbol)
	}
	return nil
}
