package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/notifications"
)

// CloseAll closes every open position reported by the venue, bounded by the
// given timeout. Each close follows the same retry policy as order entry;
// failures on individual positions are collected so one stuck position does
// not leave the rest open.
func (om *OrderManager) CloseAll(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	positions, err := om.gateway.GetOpenPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("close all: list positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	om.log.Info("Closing %d open position(s)", len(positions))
	var errs []error
	for _, pos := range positions {
		if err := om.closeWithRetry(ctx, pos); err != nil {
			om.log.LogError(fmt.Sprintf("close %s %s", pos.Symbol, pos.OrderID), err)
			errs = append(errs, fmt.Errorf("close %s: %w", pos.Symbol, err))
			continue
		}
		om.Forget(pos.OrderID)
		om.log.Trade("CLOSE %s | Lots: %.2f | P/L: %.2f | Order: %s",
			pos.Symbol, pos.Lots, pos.Profit, pos.OrderID)
		om.notify(notifications.Event{
			Kind:    notifications.EventTradeClosed,
			Symbol:  pos.Symbol,
			Message: fmt.Sprintf("closed %.4f lots, P/L %.2f", pos.Lots, pos.Profit),
			Time:    time.Now(),
		})
	}
	return errors.Join(errs...)
}

// closeWithRetry retries transient and requote close failures with backoff.
// Unlike entry, a repeated close cannot open a duplicate position, so
// transients are safe to retry.
func (om *OrderManager) closeWithRetry(ctx context.Context, pos broker.Position) error {
	var err error
	for attempt := 1; attempt <= om.cfg.MaxRetries; attempt++ {
		err = om.gateway.ClosePosition(ctx, pos.Symbol, pos.OrderID)
		if err == nil {
			return nil
		}
		if !broker.IsTransient(err) && !broker.IsRequote(err) {
			return err
		}
		if ctx.Err() != nil || attempt == om.cfg.MaxRetries {
			return err
		}
		om.log.LogWarning("close", "%s attempt %d/%d failed, retrying: %v",
			pos.Symbol, attempt, om.cfg.MaxRetries, err)
		om.sleep(om.cfg.RetryBackoff.Std())
	}
	return err
}
