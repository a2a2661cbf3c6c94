// Package reporting collects the session journal and renders it to the
// console and to an Excel workbook.
package reporting

import (
	"sync"
	"time"

	"github.com/openfx/trend-trader/internal/engine"
)

// TradeRecord is one filled order in the session journal.
type TradeRecord struct {
	Time      time.Time
	Symbol    string
	Direction string
	Lots      float64
	Price     float64
	FillMode  string
	Attempts  int
	OrderID   string
}

// CycleRecord is one trading cycle in the session journal.
type CycleRecord struct {
	Time           time.Time
	Duration       time.Duration
	Equity         float64
	Balance        float64
	Drawdown       float64
	BreakerTripped bool
	Filled         int
	Rejected       int
	NoSignal       int
	Failed         int
	TrailingMoves  int
}

// Journal accumulates trades and cycles over a session. Safe for
// concurrent use.
type Journal struct {
	mu        sync.Mutex
	startedAt time.Time
	trades    []TradeRecord
	cycles    []CycleRecord
}

// NewJournal creates an empty session journal.
func NewJournal() *Journal {
	return &Journal{startedAt: time.Now()}
}

// RecordCycle folds a cycle report into the journal.
func (j *Journal) RecordCycle(report engine.CycleReport) {
	record := CycleRecord{
		Time:           report.StartedAt,
		Duration:       report.Duration,
		Equity:         report.Equity,
		Balance:        report.Balance,
		Drawdown:       report.Breaker.Drawdown,
		BreakerTripped: report.Breaker.Tripped,
	}
	for _, res := range report.Results {
		switch res.Outcome {
		case engine.OutcomeFilled:
			record.Filled++
			j.appendTrade(TradeRecord{
				Time:      report.StartedAt,
				Symbol:    res.Symbol,
				Direction: res.Direction,
				Lots:      res.FilledLots,
				Price:     res.FilledPrice,
				FillMode:  res.FillMode,
				Attempts:  res.Attempts,
				OrderID:   res.OrderID,
			})
		case engine.OutcomeRejected, engine.OutcomeSkipped:
			record.Rejected++
		case engine.OutcomeNoSignal:
			record.NoSignal++
		case engine.OutcomeFailed:
			record.Failed++
		}
		record.TrailingMoves += res.TrailingMoves
	}

	j.mu.Lock()
	j.cycles = append(j.cycles, record)
	j.mu.Unlock()
}

func (j *Journal) appendTrade(trade TradeRecord) {
	j.mu.Lock()
	j.trades = append(j.trades, trade)
	j.mu.Unlock()
}

// Trades returns a copy of the recorded trades.
func (j *Journal) Trades() []TradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]TradeRecord, len(j.trades))
	copy(out, j.trades)
	return out
}

// Cycles returns a copy of the recorded cycles.
func (j *Journal) Cycles() []CycleRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]CycleRecord, len(j.cycles))
	copy(out, j.cycles)
	return out
}

// StartedAt returns the session start time.
func (j *Journal) StartedAt() time.Time {
	return j.startedAt
}
