package execution

import (
	"context"

	"github.com/openfx/trend-trader/internal/broker"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/pkg/types"
)

// UpdateTrailingStop recomputes the trailing stop for an open position and
// pushes it to the venue when it improves. Stops only tighten: a candidate
// on the wrong side of the current stop is a no-op, so re-running the
// maintenance pass with unchanged prices issues no venue call. A transient
// or requote modify failure is retried once; after that, and immediately on
// a fatal failure, the stop is left for the next cycle.
func (om *OrderManager) UpdateTrailingStop(ctx context.Context, pos broker.Position, quote types.Quote, atr float64) (bool, error) {
	if atr <= 0 {
		return false, nil
	}

	distance := atr * om.cfg.TrailMultiple
	var candidate float64
	if pos.Direction == types.DirectionBuy {
		candidate = quote.Bid - distance
		if candidate <= pos.StopLoss {
			return false, nil
		}
	} else {
		candidate = quote.Ask + distance
		if pos.StopLoss > 0 && candidate >= pos.StopLoss {
			return false, nil
		}
	}

	err := om.gateway.ModifyStop(ctx, pos.Symbol, pos.OrderID, candidate)
	if err != nil && (broker.IsTransient(err) || broker.IsRequote(err)) {
		om.log.LogWarning("trailing", "%s stop modify failed, retrying once: %v", pos.Symbol, err)
		om.sleep(om.cfg.RetryBackoff.Std())
		err = om.gateway.ModifyStop(ctx, pos.Symbol, pos.OrderID, candidate)
	}
	if err != nil {
		if broker.IsFatal(err) {
			return false, tradeerrors.NewFatal("execution", "modify_stop", "stop_modify_failed", err)
		}
		return false, tradeerrors.NewTransient("execution", "modify_stop", "stop_modify_failed", err)
	}

	om.mu.Lock()
	if state, ok := om.open[pos.OrderID]; ok {
		state.StopLoss = candidate
	}
	om.mu.Unlock()

	om.log.Info("%s trailing stop moved %.5f -> %.5f", pos.Symbol, pos.StopLoss, candidate)
	return true, nil
}
