package bybit

import (
	"github.com/openfx/trend-trader/internal/broker"
)

// Bybit v5 retCodes the gateway branches on.
const (
	retCodeOK                  = 0
	retCodeInvalidAPIKey       = 10003
	retCodeInvalidSignature    = 10004
	retCodeInvalidTimestamp    = 10005
	retCodeRateLimitExceeded   = 10006
	retCodeServerError         = 10016
	retCodeOrderNotFound       = 110001
	retCodeInvalidOrderType    = 110004
	retCodeInsufficientBalance = 110007
	retCodeSymbolNotFound      = 110009
	retCodeInvalidQuantity     = 110020
	retCodeInvalidPrice        = 110021
	retCodeMarketClosed        = 110043
)

// classifyRetCode maps a venue retCode to the error class the execution
// layer branches on. Unknown codes classify as rejected: a code we cannot
// interpret must not be retried into.
func classifyRetCode(code int, message string) error {
	if code == retCodeOK {
		return nil
	}

	var class broker.ErrorClass
	switch code {
	case retCodeInvalidAPIKey, retCodeInvalidSignature, retCodeInvalidTimestamp:
		class = broker.ClassFatal
	case retCodeRateLimitExceeded, retCodeServerError:
		class = broker.ClassTransient
	case retCodeInvalidOrderType:
		// The symbol refused the timeInForce we sent.
		class = broker.ClassUnsupportedFill
	case retCodeInvalidPrice:
		class = broker.ClassRequote
	case retCodeInsufficientBalance, retCodeMarketClosed,
		retCodeInvalidQuantity, retCodeSymbolNotFound, retCodeOrderNotFound:
		class = broker.ClassRejected
	default:
		class = broker.ClassRejected
	}
	return broker.NewError(class, code, message)
}
