package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/notifications"
)

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Emit(e notifications.Event) {
	r.events = append(r.events, e)
}

func (r *recordingNotifier) kinds() []notifications.EventKind {
	out := make([]notifications.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func snapshotWithEquity(equity float64) broker.AccountSnapshot {
	return broker.AccountSnapshot{
		Balance:         equity,
		Equity:          equity,
		FreeMarginRatio: 1.0,
		Timestamp:       time.Now(),
	}
}

func TestDailyBreakerTripsAtLimit(t *testing.T) {
	notifier := &recordingNotifier{}
	b := NewDailyBreaker(0.03, notifier, testLogger(t))

	assert.False(t, b.Update(snapshotWithEquity(10000)))
	assert.False(t, b.Tripped())

	// 10000 -> 9690 is a 3.1% drawdown, past the 3% limit.
	assert.True(t, b.Update(snapshotWithEquity(9690)))
	assert.True(t, b.Tripped())
	assert.Contains(t, notifier.kinds(), notifications.EventBreakerTripped)
}

func TestDailyBreakerIsStickyAfterRecovery(t *testing.T) {
	b := NewDailyBreaker(0.03, notifications.Nop{}, testLogger(t))

	b.Update(snapshotWithEquity(10000))
	require.True(t, b.Update(snapshotWithEquity(9690)))

	// Equity recovering within the day does not re-arm the breaker.
	assert.True(t, b.Update(snapshotWithEquity(9999)))
	assert.True(t, b.Tripped())
}

func TestDailyBreakerResetsOnNewDay(t *testing.T) {
	notifier := &recordingNotifier{}
	b := NewDailyBreaker(0.03, notifier, testLogger(t))

	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day1 }
	b.Update(snapshotWithEquity(10000))
	require.True(t, b.Update(snapshotWithEquity(9600)))

	b.now = func() time.Time { return day1.Add(24 * time.Hour) }
	assert.False(t, b.Update(snapshotWithEquity(9600)))
	assert.False(t, b.Tripped())
	assert.Contains(t, notifier.kinds(), notifications.EventBreakerReset)

	state := b.State()
	assert.Equal(t, 9600.0, state.DayStartEquity)
}

func TestDailyBreakerMeasuresDrawdownFromIntradayPeak(t *testing.T) {
	b := NewDailyBreaker(0.03, notifications.Nop{}, testLogger(t))

	b.Update(snapshotWithEquity(10000))
	assert.False(t, b.Update(snapshotWithEquity(10500)))

	// 10500 -> 10150 is only 1.5% below day start but 3.33% below peak.
	assert.True(t, b.Update(snapshotWithEquity(10150)))
}

func TestDailyBreakerWarnsNearLimit(t *testing.T) {
	notifier := &recordingNotifier{}
	b := NewDailyBreaker(0.03, notifier, testLogger(t))

	b.Update(snapshotWithEquity(10000))

	// 2.5% drawdown is past the 80% warning threshold but under the limit.
	assert.False(t, b.Update(snapshotWithEquity(9750)))
	assert.False(t, b.Tripped())
	assert.Contains(t, notifier.kinds(), notifications.EventBreakerWarning)

	// The warning fires once per day.
	b.Update(snapshotWithEquity(9740))
	warnings := 0
	for _, k := range notifier.kinds() {
		if k == notifications.EventBreakerWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}
