package indicators

import (
	"errors"

	"github.com/openfx/trend-trader/pkg/types"
)

// EMA represents the Exponential Moving Average technical indicator
type EMA struct {
	period      int
	alpha       float64
	lastValue   float64
	initialized bool
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Calculate calculates the EMA value over the candle closes.
func (e *EMA) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < e.period {
		return 0, errors.New("insufficient data for EMA calculation")
	}

	if !e.initialized {
		return e.initialCalculation(data)
	}
	return e.incrementalCalculation(data)
}

// initialCalculation seeds the EMA from a full pass over the data, using
// the SMA of the first period as the starting value.
func (e *EMA) initialCalculation(data []types.OHLCV) (float64, error) {
	sum := 0.0
	for i := 0; i < e.period; i++ {
		sum += data[i].Close
	}
	e.lastValue = sum / float64(e.period)
	e.initialized = true

	for i := e.period; i < len(data); i++ {
		e.lastValue = (data[i].Close * e.alpha) + (e.lastValue * (1 - e.alpha))
	}
	return e.lastValue, nil
}

func (e *EMA) incrementalCalculation(data []types.OHLCV) (float64, error) {
	if len(data) == 0 {
		return e.lastValue, nil
	}
	latest := data[len(data)-1].Close
	e.lastValue = (latest * e.alpha) + (e.lastValue * (1 - e.alpha))
	return e.lastValue, nil
}

// UpdateSingle folds a single value into the EMA.
func (e *EMA) UpdateSingle(value float64) float64 {
	if !e.initialized {
		e.lastValue = value
		e.initialized = true
	} else {
		e.lastValue = (value * e.alpha) + (e.lastValue * (1 - e.alpha))
	}
	return e.lastValue
}

// GetLastValue returns the last calculated EMA value
func (e *EMA) GetLastValue() float64 {
	return e.lastValue
}

// IsInitialized returns whether the EMA has seen enough data.
func (e *EMA) IsInitialized() bool {
	return e.initialized
}

// GetRequiredPeriods returns the minimum number of periods needed
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}

// ResetState clears the EMA state for a fresh data window.
func (e *EMA) ResetState() {
	e.lastValue = 0.0
	e.initialized = false
}
