package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/openfx/trend-trader/internal/engine"
	"github.com/openfx/trend-trader/internal/risk"
)

func sampleReport() engine.CycleReport {
	return engine.CycleReport{
		StartedAt: time.Now(),
		Duration:  120 * time.Millisecond,
		Equity:    10150,
		Balance:   10000,
		Breaker:   risk.BreakerState{Drawdown: 0.005},
		Results: []engine.SymbolResult{
			{
				Symbol: "EURUSD", Outcome: engine.OutcomeFilled, Direction: "BUY",
				OrderID: "ord-1", FilledPrice: 1.0851, FilledLots: 0.2,
				FillMode: "IOC", Attempts: 2, TrailingMoves: 1,
			},
			{Symbol: "GBPUSD", Outcome: engine.OutcomeRejected, Reason: "spread_too_wide"},
			{Symbol: "USDJPY", Outcome: engine.OutcomeNoSignal},
		},
	}
}

func TestJournalAggregatesCycles(t *testing.T) {
	j := NewJournal()
	j.RecordCycle(sampleReport())
	j.RecordCycle(sampleReport())

	cycles := j.Cycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, 1, cycles[0].Filled)
	assert.Equal(t, 1, cycles[0].Rejected)
	assert.Equal(t, 1, cycles[0].NoSignal)
	assert.Equal(t, 1, cycles[0].TrailingMoves)

	trades := j.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "EURUSD", trades[0].Symbol)
	assert.Equal(t, "BUY", trades[0].Direction)
	assert.Equal(t, 0.2, trades[0].Lots)
}

func TestExcelReporterWritesJournal(t *testing.T) {
	j := NewJournal()
	j.RecordCycle(sampleReport())

	path := filepath.Join(t.TempDir(), "session.xlsx")
	require.NoError(t, NewExcelReporter().WriteJournal(j, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Trades", "Cycles"}, fx.GetSheetList())

	symbol, err := fx.GetCellValue("Trades", "B2")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", symbol)

	filled, err := fx.GetCellValue("Cycles", "G2")
	require.NoError(t, err)
	assert.Equal(t, "1", filled)
}
