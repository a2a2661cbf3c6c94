package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/pkg/types"
)

func TestClassifyRetCode(t *testing.T) {
	assert.NoError(t, classifyRetCode(retCodeOK, ""))

	cases := []struct {
		code int
		want broker.ErrorClass
	}{
		{retCodeInvalidAPIKey, broker.ClassFatal},
		{retCodeInvalidSignature, broker.ClassFatal},
		{retCodeRateLimitExceeded, broker.ClassTransient},
		{retCodeServerError, broker.ClassTransient},
		{retCodeInvalidOrderType, broker.ClassUnsupportedFill},
		{retCodeInvalidPrice, broker.ClassRequote},
		{retCodeInsufficientBalance, broker.ClassRejected},
		{retCodeMarketClosed, broker.ClassRejected},
		{999999, broker.ClassRejected}, // unknown codes must not be retried
	}
	for _, tc := range cases {
		err := classifyRetCode(tc.code, "msg")
		require.Error(t, err)
		assert.Equal(t, tc.want, broker.ClassOf(err), "code %d", tc.code)
	}
}

func TestLimitPriceAppliesSlippageAllowance(t *testing.T) {
	spec := broker.SymbolSpec{PointSize: 0.0001}

	buy := broker.OrderRequest{Direction: types.DirectionBuy, Price: 1.0850, Slippage: 10}
	assert.InDelta(t, 1.0860, limitPrice(buy, spec), 1e-9)

	sell := broker.OrderRequest{Direction: types.DirectionSell, Price: 1.0850, Slippage: 10}
	assert.InDelta(t, 1.0840, limitPrice(sell, spec), 1e-9)
}
