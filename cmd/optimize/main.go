package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitos/premium_backtest/internal/config"
	"github.com/vitos/premium_backtest/internal/infrastructure/logger"
	"github.com/vitos/premium_backtest/internal/infrastructure/storage"
	"github.com/vitos/premium_backtest/internal/report"
	"github.com/vitos/premium_backtest/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	pricesPath := flag.String("prices", "", "price history CSV, overrides data.prices_csv")
	synthetic := flag.Bool("synthetic", false, "use the synthetic premium path even if a CSV is configured")
	workers := flag.Int("workers", 0, "parallel backtests, overrides sweep.workers")
	top := flag.Int("top", 0, "results to print, overrides sweep.top")
	saveBest := flag.Bool("save-best", false, "store the best run in the SQLite database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *pricesPath != "" {
		cfg.Data.PricesCSV = *pricesPath
	}
	if *workers > 0 {
		cfg.Sweep.Workers = *workers
	}
	if *top > 0 {
		cfg.Sweep.Top = *top
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	base, err := cfg.BacktestConfig()
	if err != nil {
		log.Fatal("Invalid backtest config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := cfg.PriceSource(*synthetic)
	if err != nil {
		log.Fatal("Failed to init price source", zap.Error(err))
	}
	points, err := source.LoadPrices(ctx)
	if err != nil {
		log.Fatal("Failed to load prices", zap.Error(err))
	}

	candidates := cfg.Sweep.Grid.Candidates(base)
	log.Info("Starting sweep",
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", cfg.Sweep.Workers),
		zap.Int("points", len(points)))

	results, err := usecase.NewParameterSweep(cfg.Sweep.Workers, log).Run(ctx, base, cfg.Sweep.Grid, points)
	if err != nil {
		log.Fatal("Sweep failed", zap.Error(err))
	}

	report.NewConsole(0).PrintSweep(results, cfg.Sweep.Top)

	if *saveBest && len(results) > 0 {
		store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			log.Fatal("Failed to init sqlite", zap.Error(err))
		}
		defer store.Close()

		best := results[0]
		id, err := store.SaveResult(ctx, "sweep-best", best.Config, best.Result)
		if err != nil {
			log.Fatal("Failed to save run", zap.Error(err))
		}
		log.Info("Best run saved", zap.String("run_id", id))
	}
}
