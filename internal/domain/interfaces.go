package domain

import (
	"context"
	"time"
)

// PriceSource supplies a complete, time-ordered price history.
type PriceSource interface {
	LoadPrices(ctx context.Context) ([]PricePoint, error)
}

// RunSummary is the persisted header of a backtest run.
type RunSummary struct {
	ID             string
	Name           string
	CreatedAt      time.Time
	StartedAt      time.Time
	EndedAt        time.Time
	InitialValue   float64
	FinalValue     float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	WinRate        float64
	ProfitFactor   float64
	SharpeRatio    float64
	EntryCount     int
	ExitCount      int
	MissedEntries  int
	DataGaps       int
	ConfigYAML     string
}

// ResultRepository defines storage operations for backtest results.
type ResultRepository interface {
	SaveResult(ctx context.Context, name string, cfg BacktestConfig, result *BacktestResult) (string, error)
	GetRun(ctx context.Context, id string) (*RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)
	ListTrades(ctx context.Context, runID string) ([]Trade, error)
	ListEquity(ctx context.Context, runID string) ([]EquityPoint, error)
}
