package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/infrastructure/pricefeed"
	"github.com/vitos/premium_backtest/internal/infrastructure/storage"
	"github.com/vitos/premium_backtest/internal/report"
	"github.com/vitos/premium_backtest/internal/usecase"
)

func main() {
	dbPath := flag.String("db", "backtest.db", "SQLite database")
	limit := flag.Int("limit", 20, "runs to list, 0 lists all")
	runID := flag.String("run", "", "show a single run")
	tradesCSV := flag.String("trades-csv", "", "with -run, export its trades to this CSV file")
	remove := flag.String("delete", "", "delete the run with this id")
	flag.Parse()

	if v := os.Getenv("BACKTEST_DB_PATH"); v != "" && !isFlagSet("db") {
		*dbPath = v
	}

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	console := report.NewConsole(0)

	switch {
	case *remove != "":
		if err := store.DeleteRun(ctx, *remove); err != nil {
			fmt.Printf("Failed to delete run: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted run %s\n", *remove)

	case *runID != "":
		if err := showRun(ctx, store, console, *runID, *tradesCSV); err != nil {
			fmt.Printf("Failed to load run: %v\n", err)
			os.Exit(1)
		}

	default:
		runs, err := store.ListRuns(ctx, *limit)
		if err != nil {
			fmt.Printf("Failed to list runs: %v\n", err)
			os.Exit(1)
		}
		console.PrintRuns(runs)
	}
}

// showRun rebuilds a result from storage and prints it like a fresh run.
func showRun(ctx context.Context, store *storage.SQLiteStore, console *report.Console, id, tradesCSV string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	trades, err := store.ListTrades(ctx, id)
	if err != nil {
		return err
	}
	equity, err := store.ListEquity(ctx, id)
	if err != nil {
		return err
	}
	missed, err := store.ListMissedEntries(ctx, id)
	if err != nil {
		return err
	}

	res := &domain.BacktestResult{
		StartedAt:     run.StartedAt,
		EndedAt:       run.EndedAt,
		InitialValue:  run.InitialValue,
		FinalValue:    run.FinalValue,
		Trades:        trades,
		EquityCurve:   equity,
		MissedEntries: missed,
		Metrics: domain.Metrics{
			TotalReturnPct: run.TotalReturnPct,
			MaxDrawdownPct: run.MaxDrawdownPct,
			WinRate:        run.WinRate,
			ProfitFactor:   run.ProfitFactor,
			SharpeRatio:    run.SharpeRatio,
		},
		TicksProcessed: len(equity),
	}
	for _, t := range trades {
		if t.Forced {
			res.ForcedExits++
		}
		if t.StopLoss {
			res.StopLossExits++
		}
	}

	console.PrintRuns([]*domain.RunSummary{run})
	console.PrintResult(run.Name, res)

	drawdown := usecase.DrawdownSeries(equity)
	if len(drawdown) > 0 {
		worst := drawdown[0]
		for _, p := range drawdown {
			if p.Value > worst.Value {
				worst = p
			}
		}
		fmt.Printf("Deepest drawdown %.2f%% at %s\n", worst.Value, worst.Timestamp.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Config:\n%s", run.ConfigYAML)

	if tradesCSV != "" {
		return pricefeed.WriteTradesCSV(tradesCSV, trades)
	}
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
