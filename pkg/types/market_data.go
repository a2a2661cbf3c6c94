package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Quote is a top-of-book snapshot for a symbol.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// SpreadPoints returns the bid/ask spread expressed in points of the
// given point size. Returns 0 for a non-positive point size.
func (q Quote) SpreadPoints(pointSize float64) float64 {
	if pointSize <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / pointSize
}
