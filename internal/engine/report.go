package engine

import (
	"time"

	"github.com/openfx/trend-trader/internal/risk"
)

// Outcome is the terminal state of one symbol's pipeline within a cycle.
type Outcome string

const (
	OutcomeFilled   Outcome = "FILLED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomeNoSignal Outcome = "NO_SIGNAL"
	OutcomeSkipped  Outcome = "SKIPPED" // breaker tripped before evaluation
	OutcomeFailed   Outcome = "FAILED"
)

// SymbolResult reports what one symbol's pipeline did this cycle.
type SymbolResult struct {
	Symbol        string
	Outcome       Outcome
	Reason        string // rejection reason code or error reason
	Direction     string
	OrderID       string
	FilledPrice   float64
	FilledLots    float64
	FillMode      string
	Attempts      int
	TrailingMoves int
	Err           error
}

// CycleReport summarizes one trading cycle.
type CycleReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Equity    float64
	Balance   float64
	Breaker   risk.BreakerState
	Results   []SymbolResult
}

// FilledCount returns the number of orders filled this cycle.
func (r CycleReport) FilledCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeFilled {
			n++
		}
	}
	return n
}
