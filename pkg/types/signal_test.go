package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBuy() TradeSignal {
	return TradeSignal{
		Symbol:     "BTCUSDT",
		Direction:  DirectionBuy,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}
}

func TestTradeSignalValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TradeSignal)
		wantErr bool
	}{
		{"valid buy", func(s *TradeSignal) {}, false},
		{"valid sell", func(s *TradeSignal) {
			s.Direction = DirectionSell
			s.StopLoss = 51000
			s.TakeProfit = 48000
		}, false},
		{"missing symbol", func(s *TradeSignal) { s.Symbol = "" }, true},
		{"zero entry", func(s *TradeSignal) { s.EntryPrice = 0 }, true},
		{"buy stop above entry", func(s *TradeSignal) { s.StopLoss = 50500 }, true},
		{"buy target below entry", func(s *TradeSignal) { s.TakeProfit = 49500 }, true},
		{"sell stop below entry", func(s *TradeSignal) {
			s.Direction = DirectionSell
			s.StopLoss = 49000
			s.TakeProfit = 48000
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validBuy()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "BUY", DirectionBuy.String())
	assert.Equal(t, "SELL", DirectionSell.String())
	assert.Equal(t, "UNKNOWN", Direction(7).String())
}
