package reporting

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openfx/trend-trader/internal/engine"
)

// ConsoleReporter renders cycle reports and the session summary to stdout.
type ConsoleReporter struct{}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintCycle renders one cycle report as a table.
func (r *ConsoleReporter) PrintCycle(report engine.CycleReport) {
	breaker := "armed"
	if report.Breaker.Tripped {
		breaker = "TRIPPED"
	}
	fmt.Printf("\n🔄 Cycle %s | equity $%.2f | drawdown %.2f%% | breaker %s\n",
		report.StartedAt.Format("15:04:05"), report.Equity, report.Breaker.Drawdown*100, breaker)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Outcome", "Detail", "Lots", "Price", "Mode", "Attempts", "Trail"})
	for _, res := range report.Results {
		detail := res.Reason
		if res.Outcome == engine.OutcomeFilled {
			detail = res.OrderID
		}
		t.AppendRow(table.Row{
			res.Symbol,
			colorOutcome(res.Outcome),
			detail,
			formatLots(res.FilledLots),
			formatPrice(res.FilledPrice),
			res.FillMode,
			zeroBlank(res.Attempts),
			zeroBlank(res.TrailingMoves),
		})
	}
	t.Render()
}

// PrintSessionSummary renders the end-of-session totals.
func (r *ConsoleReporter) PrintSessionSummary(journal *Journal) {
	trades := journal.Trades()
	cycles := journal.Cycles()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 SESSION SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("⏱️  Session Length:  %s\n", time.Since(journal.StartedAt()).Round(time.Second))
	fmt.Printf("🔄 Cycles Run:      %d\n", len(cycles))
	fmt.Printf("✅ Orders Filled:   %d\n", len(trades))

	rejected, trailingMoves := 0, 0
	breakerCycles := 0
	for _, c := range cycles {
		rejected += c.Rejected
		trailingMoves += c.TrailingMoves
		if c.BreakerTripped {
			breakerCycles++
		}
	}
	fmt.Printf("🚫 Rejections:      %d\n", rejected)
	fmt.Printf("🎯 Trailing Moves:  %d\n", trailingMoves)
	fmt.Printf("⛔ Breaker Cycles:  %d\n", breakerCycles)

	if len(cycles) > 0 {
		last := cycles[len(cycles)-1]
		fmt.Printf("💰 Final Equity:    $%.2f\n", last.Equity)
		fmt.Printf("📉 Final Drawdown:  %.2f%%\n", last.Drawdown*100)
	}

	if len(trades) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Trades")
	t.AppendHeader(table.Row{"Time", "Symbol", "Direction", "Lots", "Price", "Mode", "Attempts", "Order"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Time.Format("15:04:05"),
			tr.Symbol,
			tr.Direction,
			formatLots(tr.Lots),
			formatPrice(tr.Price),
			tr.FillMode,
			tr.Attempts,
			tr.OrderID,
		})
	}
	t.Render()
}

func colorOutcome(outcome engine.Outcome) string {
	switch outcome {
	case engine.OutcomeFilled:
		return text.FgGreen.Sprint(outcome)
	case engine.OutcomeRejected, engine.OutcomeSkipped:
		return text.FgYellow.Sprint(outcome)
	case engine.OutcomeFailed:
		return text.FgRed.Sprint(outcome)
	default:
		return string(outcome)
	}
}

func formatLots(lots float64) string {
	if lots == 0 {
		return ""
	}
	return fmt.Sprintf("%.4f", lots)
}

func formatPrice(price float64) string {
	if price == 0 {
		return ""
	}
	return fmt.Sprintf("%.5f", price)
}

func zeroBlank(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}
