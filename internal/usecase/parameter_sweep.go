package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vitos/premium_backtest/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepGrid lists the alternatives to try. An empty dimension keeps the
// base config's value.
type SweepGrid struct {
	EntryLevelSets   [][]float64 `yaml:"entry_level_sets"`
	ExitLevelSets    [][]float64 `yaml:"exit_level_sets"`
	PositionPortions []float64   `yaml:"position_portions"`
	StopLossPcts     []float64   `yaml:"stop_loss_pcts"`
}

// SweepResult is the outcome of one candidate config.
type SweepResult struct {
	Index  int // position in the candidate list
	Config domain.BacktestConfig
	Result *domain.BacktestResult
}

// Candidates expands the grid over base, dropping invalid combinations.
func (g SweepGrid) Candidates(base domain.BacktestConfig) []domain.BacktestConfig {
	entries := g.EntryLevelSets
	if len(entries) == 0 {
		entries = [][]float64{base.EntryLevels}
	}
	exits := g.ExitLevelSets
	if len(exits) == 0 {
		exits = [][]float64{base.ExitLevels}
	}
	portions := g.PositionPortions
	if len(portions) == 0 {
		portions = []float64{base.PositionPortion}
	}
	stops := g.StopLossPcts
	if len(stops) == 0 {
		stops = []float64{base.StopLossPct}
	}

	var out []domain.BacktestConfig
	for _, en := range entries {
		for _, ex := range exits {
			for _, pp := range portions {
				for _, sl := range stops {
					c := base
					c.EntryLevels = en
					c.ExitLevels = ex
					c.PositionPortion = pp
					c.StopLossPct = sl
					valid, err := domain.NewBacktestConfig(c)
					if err != nil {
						continue
					}
					out = append(out, valid)
				}
			}
		}
	}
	return out
}

// ParameterSweep runs independent backtests over a grid of configs. Every
// candidate gets its own runner, so runs share nothing but the read-only
// price slice.
type ParameterSweep struct {
	workers int
	logger  *zap.Logger
}

func NewParameterSweep(workers int, logger *zap.Logger) *ParameterSweep {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParameterSweep{workers: workers, logger: logger}
}

// Run executes every candidate and returns results sorted by total return,
// best first. Candidates whose data has no valid tick are skipped; any other
// error aborts the sweep.
func (s *ParameterSweep) Run(ctx context.Context, base domain.BacktestConfig, grid SweepGrid, points []domain.PricePoint) ([]SweepResult, error) {
	candidates := grid.Candidates(base)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: sweep grid produced no valid candidate", domain.ErrInvalidConfig)
	}

	var (
		mu      sync.Mutex
		results = make([]SweepResult, 0, len(candidates))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, cfg := range candidates {
		g.Go(func() error {
			runner, err := NewBacktestRunner(cfg, nil)
			if err != nil {
				return err
			}
			res, err := runner.Run(gctx, points)
			if errors.Is(err, domain.ErrNoValidTicks) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			mu.Lock()
			results = append(results, SweepResult{Index: i, Config: cfg, Result: res})
			mu.Unlock()
			s.logger.Debug("Sweep candidate finished",
				zap.Int("candidate", i),
				zap.Float64s("entry_levels", cfg.EntryLevels),
				zap.Float64s("exit_levels", cfg.ExitLevels),
				zap.Float64("position_portion", cfg.PositionPortion),
				zap.Float64("total_return_pct", res.Metrics.TotalReturnPct))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(a, b int) bool {
		ra, rb := results[a].Result.Metrics.TotalReturnPct, results[b].Result.Metrics.TotalReturnPct
		if ra != rb {
			return ra > rb
		}
		return results[a].Index < results[b].Index
	})
	s.logger.Info("Sweep finished", zap.Int("candidates", len(candidates)), zap.Int("results", len(results)))
	return results, nil
}
