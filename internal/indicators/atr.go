package indicators

import (
	"errors"
	"math"

	"github.com/openfx/trend-trader/pkg/types"
)

// ATR represents the Average True Range technical indicator. It uses EMA
// smoothing over the true range, Wilder-style.
type ATR struct {
	period      int
	ema         *EMA
	lastClose   float64
	initialized bool
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		ema:    NewEMA(period),
	}
}

// Calculate calculates the ATR value
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period {
		return 0, errors.New("insufficient data points for ATR calculation")
	}

	if !a.initialized {
		return a.initialCalculation(data)
	}
	return a.incrementalCalculation(data)
}

// initialCalculation builds up the smoothed true range from the full window.
func (a *ATR) initialCalculation(data []types.OHLCV) (float64, error) {
	for i := 0; i < len(data); i++ {
		candle := data[i]

		var trueRange float64
		if i > 0 {
			trueRange = a.calculateTrueRange(candle, a.lastClose)
		} else {
			trueRange = candle.High - candle.Low
		}

		a.ema.UpdateSingle(trueRange)
		a.lastClose = candle.Close
	}

	a.initialized = true
	return a.ema.GetLastValue(), nil
}

// incrementalCalculation folds the latest candle into the smoothed range.
func (a *ATR) incrementalCalculation(data []types.OHLCV) (float64, error) {
	if len(data) == 0 {
		return a.ema.GetLastValue(), nil
	}

	latest := data[len(data)-1]
	trueRange := a.calculateTrueRange(latest, a.lastClose)
	a.ema.UpdateSingle(trueRange)
	a.lastClose = latest.Close

	return a.ema.GetLastValue(), nil
}

// calculateTrueRange computes max(high-low, |high-prevClose|, |low-prevClose|).
func (a *ATR) calculateTrueRange(candle types.OHLCV, prevClose float64) float64 {
	highLow := candle.High - candle.Low
	highClose := math.Abs(candle.High - prevClose)
	lowClose := math.Abs(candle.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// GetRequiredPeriods returns the minimum number of periods needed
func (a *ATR) GetRequiredPeriods() int {
	return a.period
}

// ResetState clears the ATR state for a fresh data window.
func (a *ATR) ResetState() {
	a.ema.ResetState()
	a.lastClose = 0
	a.initialized = false
}
