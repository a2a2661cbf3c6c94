package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Execution metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_trader_trades_total",
			Help: "Total number of orders filled",
		},
		[]string{"symbol", "direction"},
	)

	tradeLots = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trend_trader_trade_lots",
			Help:    "Distribution of filled lot sizes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"symbol"},
	)

	submitAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trend_trader_submit_attempts",
			Help:    "Submission attempts per filled order, including requote retries",
			Buckets: []float64{1, 2, 3, 4, 6, 9},
		},
		[]string{"symbol"},
	)

	trailingUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_trader_trailing_updates_total",
			Help: "Trailing stop modifications pushed to the venue",
		},
		[]string{"symbol"},
	)

	// Risk metrics
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_trader_signal_rejections_total",
			Help: "Signals rejected by pre-trade validation",
		},
		[]string{"symbol", "reason"},
	)

	breakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_trader_circuit_breaker_tripped",
			Help: "1 while the daily drawdown breaker blocks new entries",
		},
	)

	accountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_trader_account_equity",
			Help: "Account equity from the latest cycle snapshot",
		},
	)

	dailyDrawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_trader_daily_drawdown",
			Help: "Worst-of day-start and intraday-peak drawdown fraction",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_trader_errors_total",
			Help: "Engine errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeLots)
	prometheus.MustRegister(submitAttempts)
	prometheus.MustRegister(trailingUpdates)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(breakerTripped)
	prometheus.MustRegister(accountEquity)
	prometheus.MustRegister(dailyDrawdown)
	prometheus.MustRegister(errorsTotal)
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records a filled order.
func RecordTrade(symbol, direction string, lots float64, attempts int) {
	tradesTotal.WithLabelValues(symbol, direction).Inc()
	tradeLots.WithLabelValues(symbol).Observe(lots)
	submitAttempts.WithLabelValues(symbol).Observe(float64(attempts))
}

// RecordTrailingUpdate records a pushed trailing-stop modification.
func RecordTrailingUpdate(symbol string) {
	trailingUpdates.WithLabelValues(symbol).Inc()
}

// RecordRejection records a validation rejection by reason code.
func RecordRejection(symbol, reason string) {
	rejectionsTotal.WithLabelValues(symbol, reason).Inc()
}

// UpdateBreaker reflects the circuit breaker state.
func UpdateBreaker(tripped bool) {
	if tripped {
		breakerTripped.Set(1)
	} else {
		breakerTripped.Set(0)
	}
}

// UpdateAccount reflects the latest cycle snapshot.
func UpdateAccount(equity, drawdown float64) {
	accountEquity.Set(equity)
	dailyDrawdown.Set(drawdown)
}

// RecordError records an engine error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
