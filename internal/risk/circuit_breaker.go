package risk

import (
	"sync"
	"time"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/notifications"
)

// warnFraction is the share of the drawdown limit at which a near-trip
// warning is emitted.
const warnFraction = 0.8

// BreakerState is a copy of the circuit breaker's bookkeeping, reported in
// cycle summaries.
type BreakerState struct {
	Tripped        bool
	TripDay        time.Time
	DayStartEquity float64
	PeakEquity     float64
	Drawdown       float64
}

// DailyBreaker is the daily drawdown kill-switch. Once tripped it stays
// tripped for the rest of the calendar day; the first update of a new day
// resets it. Trailing-stop maintenance on open positions is not blocked by
// a trip, only new entries are.
type DailyBreaker struct {
	maxDrawdown float64
	notifier    notifications.Notifier
	log         *logger.Logger
	now         func() time.Time

	mu             sync.Mutex
	tripped        bool
	warned         bool
	day            time.Time
	dayStartEquity float64
	peakEquity     float64
	drawdown       float64
}

// NewDailyBreaker creates a breaker with the given drawdown limit.
func NewDailyBreaker(maxDrawdown float64, notifier notifications.Notifier, log *logger.Logger) *DailyBreaker {
	return &DailyBreaker{
		maxDrawdown: maxDrawdown,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// Update folds an account snapshot into the breaker and reports whether it
// is tripped. The first call of a new calendar day resets the bookkeeping
// to the snapshot's equity.
func (b *DailyBreaker) Update(snapshot broker.AccountSnapshot) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := dateOf(b.now())
	if !today.Equal(b.day) {
		if b.tripped {
			b.emit(notifications.EventBreakerReset, "circuit_breaker_reset", "new trading day, breaker reset")
		}
		b.day = today
		b.dayStartEquity = snapshot.Equity
		b.peakEquity = snapshot.Equity
		b.tripped = false
		b.warned = false
		b.drawdown = 0
		b.log.Info("Daily risk statistics reset | day-start equity: %.2f", snapshot.Equity)
		return false
	}

	if snapshot.Equity > b.peakEquity {
		b.peakEquity = snapshot.Equity
	}
	if b.tripped {
		return true
	}

	fromStart := drawdownFrom(b.dayStartEquity, snapshot.Equity)
	fromPeak := drawdownFrom(b.peakEquity, snapshot.Equity)
	b.drawdown = fromStart
	if fromPeak > b.drawdown {
		b.drawdown = fromPeak
	}

	if b.drawdown >= b.maxDrawdown {
		b.tripped = true
		b.log.Error("CIRCUIT BREAKER TRIPPED | drawdown %.2f%% >= limit %.2f%%",
			b.drawdown*100, b.maxDrawdown*100)
		b.emit(notifications.EventBreakerTripped, "circuit_breaker_tripped",
			"daily drawdown limit breached, new entries suspended")
		return true
	}

	if !b.warned && b.drawdown >= b.maxDrawdown*warnFraction {
		b.warned = true
		b.log.Warning("Drawdown %.2f%% approaching daily limit %.2f%%",
			b.drawdown*100, b.maxDrawdown*100)
		b.emit(notifications.EventBreakerWarning, "circuit_breaker_warning",
			"daily drawdown approaching limit")
	}
	return false
}

// Tripped reports the sticky trip flag without mutating state.
func (b *DailyBreaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// State returns a copy of the breaker bookkeeping.
func (b *DailyBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		Tripped:        b.tripped,
		TripDay:        b.day,
		DayStartEquity: b.dayStartEquity,
		PeakEquity:     b.peakEquity,
		Drawdown:       b.drawdown,
	}
}

func (b *DailyBreaker) emit(kind notifications.EventKind, reason, message string) {
	if b.notifier == nil {
		return
	}
	b.notifier.Emit(notifications.Event{
		Kind:    kind,
		Reason:  reason,
		Message: message,
		Time:    b.now(),
	})
}

func drawdownFrom(reference, equity float64) float64 {
	if reference <= 0 {
		return 0
	}
	dd := (reference - equity) / reference
	if dd < 0 {
		return 0
	}
	return dd
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
