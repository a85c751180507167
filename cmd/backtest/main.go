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
	"github.com/vitos/premium_backtest/internal/infrastructure/pricefeed"
	"github.com/vitos/premium_backtest/internal/infrastructure/storage"
	"github.com/vitos/premium_backtest/internal/report"
	"github.com/vitos/premium_backtest/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (built-in defaults when empty)")
	pricesPath := flag.String("prices", "", "price history CSV, overrides data.prices_csv")
	synthetic := flag.Bool("synthetic", false, "use the synthetic premium path even if a CSV is configured")
	save := flag.Bool("save", false, "store the run in the SQLite database")
	tradesCSV := flag.String("trades-csv", "", "write the trade log to this CSV file")
	name := flag.String("name", "backtest", "run name shown in reports and storage")
	maxTrades := flag.Int("max-trades", 50, "trades to print, 0 prints all")
	flag.Parse()

	// 1. Load Config
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *pricesPath != "" {
		cfg.Data.PricesCSV = *pricesPath
	}

	// 2. Init Logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	btCfg, err := cfg.BacktestConfig()
	if err != nil {
		log.Fatal("Invalid backtest config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load Prices
	source, err := cfg.PriceSource(*synthetic)
	if err != nil {
		log.Fatal("Failed to init price source", zap.Error(err))
	}
	points, err := source.LoadPrices(ctx)
	if err != nil {
		log.Fatal("Failed to load prices", zap.Error(err))
	}
	log.Info("Prices loaded", zap.Int("points", len(points)), zap.String("csv", cfg.Data.PricesCSV))

	// 4. Run
	runner, err := usecase.NewBacktestRunner(btCfg, log)
	if err != nil {
		log.Fatal("Failed to init runner", zap.Error(err))
	}
	res, err := runner.Run(ctx, points)
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}

	report.NewConsole(*maxTrades).PrintResult(*name, res)

	// 5. Export
	if *tradesCSV != "" {
		if err := pricefeed.WriteTradesCSV(*tradesCSV, res.Trades); err != nil {
			log.Error("Failed to write trades CSV", zap.Error(err))
		} else {
			log.Info("Trades written", zap.String("path", *tradesCSV), zap.Int("trades", len(res.Trades)))
		}
	}

	if *save {
		store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			log.Fatal("Failed to init sqlite", zap.Error(err))
		}
		defer store.Close()

		id, err := store.SaveResult(ctx, *name, runner.Config(), res)
		if err != nil {
			log.Fatal("Failed to save run", zap.Error(err))
		}
		log.Info("Run saved", zap.String("run_id", id), zap.String("db", cfg.Storage.DSN))
	}
}
