package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/usecase"
)

// Console renders backtest output as text tables.
type Console struct {
	out       io.Writer
	maxTrades int
}

// NewConsole writes to stdout and lists at most maxTrades trades per run
// (0 lists them all).
func NewConsole(maxTrades int) *Console {
	return &Console{out: os.Stdout, maxTrades: maxTrades}
}

// NewConsoleWriter is NewConsole for an arbitrary writer.
func NewConsoleWriter(w io.Writer, maxTrades int) *Console {
	return &Console{out: w, maxTrades: maxTrades}
}

// PrintResult prints the summary, the trade log and missed entries of a run.
func (c *Console) PrintResult(name string, res *domain.BacktestResult) {
	m := res.Metrics
	fmt.Fprintf(c.out, "\n=== %s ===\n", name)
	fmt.Fprintf(c.out, "Period      %s -> %s (%d ticks, %d out of range, %d gaps)\n",
		res.StartedAt.Format("2006-01-02 15:04"), res.EndedAt.Format("2006-01-02 15:04"),
		res.TicksProcessed, res.SkippedOutOfRange, len(res.DataGaps))
	fmt.Fprintf(c.out, "Value       %s -> %s\n", money(res.InitialValue), money(res.FinalValue))

	summary := tablewriter.NewWriter(c.out)
	summary.Header("Return %", "Max DD %", "Win %", "Profit factor", "Sharpe", "Entries", "Exits", "Forced", "Stop loss", "Resets")
	summary.Append(
		fmt.Sprintf("%.2f", m.TotalReturnPct),
		fmt.Sprintf("%.2f", m.MaxDrawdownPct),
		fmt.Sprintf("%.1f", m.WinRate),
		factor(m.ProfitFactor),
		fmt.Sprintf("%.2f", m.SharpeRatio),
		fmt.Sprintf("%d", res.EntryCount()),
		fmt.Sprintf("%d", res.ExitCount()),
		fmt.Sprintf("%d", res.ForcedExits),
		fmt.Sprintf("%d", res.StopLossExits),
		fmt.Sprintf("%d", res.LadderResets),
	)
	summary.Render()

	c.printTrades(res.Trades)
	c.printMissed(res)
}

func (c *Console) printTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "no trades")
		return
	}
	shown := trades
	if c.maxTrades > 0 && len(shown) > c.maxTrades {
		shown = shown[:c.maxTrades]
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Action", "Pos", "Level %", "Premium %", "Size", "Price A", "Price B", "Fees", "PnL")
	for _, t := range shown {
		action := string(t.Action)
		switch {
		case t.Forced:
			action += "*"
		case t.StopLoss:
			action += "!"
		}
		pnl := ""
		if t.IsClose() {
			pnl = money(t.RealizedPnL)
		}
		table.Append(
			t.Timestamp.Format("2006-01-02 15:04"),
			action,
			fmt.Sprintf("%d", t.PositionID),
			fmt.Sprintf("%.2f", t.Level),
			fmt.Sprintf("%.3f", t.Premium),
			fmt.Sprintf("%.6f", t.Amount),
			fmt.Sprintf("%.2f", t.LegA.Price),
			fmt.Sprintf("%.2f", t.LegB.Price),
			money(t.Commission+t.Slippage),
			pnl,
		)
	}
	table.Render()
	if len(shown) < len(trades) {
		fmt.Fprintf(c.out, "  ... %d more trades\n", len(trades)-len(shown))
	}
	fmt.Fprintln(c.out, "  * = forced exit at end of data, ! = stop loss")
}

func (c *Console) printMissed(res *domain.BacktestResult) {
	byReason := res.MissedByReason()
	if len(byReason) == 0 {
		return
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, byReason[r])
	}
	fmt.Fprintf(c.out, "Missed entries: %s\n", strings.Join(parts, " "))
}

// PrintSweep lists the best top results of a parameter sweep.
func (c *Console) PrintSweep(results []usecase.SweepResult, top int) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "no sweep results")
		return
	}
	if top > 0 && len(results) > top {
		results = results[:top]
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Entry levels", "Exit levels", "Portion", "Stop %", "Return %", "Max DD %", "Win %", "PF", "Sharpe", "Trades")
	for i, r := range results {
		m := r.Result.Metrics
		table.Append(
			fmt.Sprintf("%d", i+1),
			levels(r.Config.EntryLevels),
			levels(r.Config.ExitLevels),
			fmt.Sprintf("%.2f", r.Config.PositionPortion),
			stopLoss(r.Config.StopLossPct),
			fmt.Sprintf("%.2f", m.TotalReturnPct),
			fmt.Sprintf("%.2f", m.MaxDrawdownPct),
			fmt.Sprintf("%.1f", m.WinRate),
			factor(m.ProfitFactor),
			fmt.Sprintf("%.2f", m.SharpeRatio),
			fmt.Sprintf("%d", len(r.Result.Trades)),
		)
	}
	table.Render()
}

// PrintRuns lists stored runs.
func (c *Console) PrintRuns(runs []*domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no stored runs")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Name", "Created", "Return %", "Max DD %", "Win %", "PF", "Entries", "Exits", "Missed")
	for _, r := range runs {
		table.Append(
			r.ID,
			r.Name,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2f", r.TotalReturnPct),
			fmt.Sprintf("%.2f", r.MaxDrawdownPct),
			fmt.Sprintf("%.1f", r.WinRate),
			factor(r.ProfitFactor),
			fmt.Sprintf("%d", r.EntryCount),
			fmt.Sprintf("%d", r.ExitCount),
			fmt.Sprintf("%d", r.MissedEntries),
		)
	}
	table.Render()
}

func factor(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", v)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func levels(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, "/")
}

func stopLoss(pct float64) string {
	if pct == 0 {
		return "off"
	}
	return fmt.Sprintf("%.2f", pct)
}
