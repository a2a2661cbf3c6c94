package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter writes the session journal as an Excel workbook with a
// Trades sheet and a Cycles sheet.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteJournal writes the journal to path, creating directories as needed.
func (r *ExcelReporter) WriteJournal(journal *Journal, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const cyclesSheet = "Cycles"
	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(cyclesSheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, journal, headerStyle); err != nil {
		return err
	}
	if err := r.writeCyclesSheet(fx, cyclesSheet, journal, headerStyle); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, journal *Journal, headerStyle int) error {
	headers := []string{"Time", "Symbol", "Direction", "Lots", "Price", "Fill Mode", "Attempts", "Order ID"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	for i, trade := range journal.Trades() {
		row := i + 2
		values := []interface{}{
			trade.Time.Format("2006-01-02 15:04:05"),
			trade.Symbol,
			trade.Direction,
			trade.Lots,
			trade.Price,
			trade.FillMode,
			trade.Attempts,
			trade.OrderID,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *ExcelReporter) writeCyclesSheet(fx *excelize.File, sheet string, journal *Journal, headerStyle int) error {
	headers := []string{"Time", "Duration", "Equity", "Balance", "Drawdown", "Breaker", "Filled", "Rejected", "No Signal", "Failed", "Trailing Moves"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	for i, cycle := range journal.Cycles() {
		row := i + 2
		breaker := "armed"
		if cycle.BreakerTripped {
			breaker = "tripped"
		}
		values := []interface{}{
			cycle.Time.Format("2006-01-02 15:04:05"),
			cycle.Duration.String(),
			cycle.Equity,
			cycle.Balance,
			cycle.Drawdown,
			breaker,
			cycle.Filled,
			cycle.Rejected,
			cycle.NoSignal,
			cycle.Failed,
			cycle.TrailingMoves,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
