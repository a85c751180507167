package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
	"go.uber.org/zap"
)

// BacktestRunner replays a price history through a fresh ScaledStrategyEngine.
// Each Run builds its own state, so one runner never leaks state between runs
// and separate runners can be used from separate goroutines.
type BacktestRunner struct {
	cfg     domain.BacktestConfig
	metrics *MetricsEngine
	logger  *zap.Logger
}

// NewBacktestRunner validates cfg before any tick is processed.
func NewBacktestRunner(cfg domain.BacktestConfig, logger *zap.Logger) (*BacktestRunner, error) {
	valid, err := domain.NewBacktestConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestRunner{
		cfg:     valid,
		metrics: NewMetricsEngine(),
		logger:  logger,
	}, nil
}

func (r *BacktestRunner) Config() domain.BacktestConfig {
	return r.cfg
}

// Run processes points strictly in order, force-closes what is still open at
// the last valid tick and computes metrics. The last equity point is revalued
// after the forced close so drawdown and Sharpe see its costs.
func (r *BacktestRunner) Run(ctx context.Context, points []domain.PricePoint) (*domain.BacktestResult, error) {
	if err := checkOrder(points, r.cfg.DateRange); err != nil {
		return nil, err
	}

	state := NewStrategyState(r.cfg)
	engine := NewScaledStrategyEngine(r.cfg, state, r.logger)
	res := &domain.BacktestResult{}

	var (
		last  domain.PricePoint
		valid int
	)
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled: %w", err)
		}
		if !r.cfg.DateRange.Contains(p.Timestamp) {
			res.SkippedOutOfRange++
			continue
		}
		if err := p.Validate(); err != nil {
			r.recordGap(res, p, err)
			continue
		}

		if valid == 0 {
			res.StartedAt = p.Timestamp
			res.InitialValue = state.Balances.Value(p.FXRate)
		}

		outcome, err := engine.OnTick(p)
		if err != nil {
			if isDataError(err) {
				r.recordGap(res, p, err)
				continue
			}
			return nil, fmt.Errorf("tick %s: %w", p.Timestamp.Format(time.RFC3339), err)
		}
		valid++
		last = p

		res.Trades = append(res.Trades, outcome.Trades...)
		for _, tr := range outcome.Trades {
			if tr.StopLoss {
				res.StopLossExits++
			}
		}
		res.MissedEntries = append(res.MissedEntries, outcome.Missed...)
		res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{
			Timestamp: p.Timestamp,
			Value:     state.Equity(p),
		})
	}

	if valid == 0 {
		return nil, domain.ErrNoValidTicks
	}
	res.TicksProcessed = valid
	res.EndedAt = last.Timestamp

	forced, err := engine.ForceClose(last)
	if err != nil {
		return nil, err
	}
	res.Trades = append(res.Trades, forced...)
	res.ForcedExits = len(forced)
	res.LadderResets = state.Cycles

	res.FinalBalances = state.Balances
	res.FinalValue = state.Balances.Value(last.FXRate)
	if len(forced) > 0 {
		res.EquityCurve[len(res.EquityCurve)-1].Value = res.FinalValue
	}
	res.Metrics = r.metrics.Compute(res.Trades, res.EquityCurve, MetricsOptions{
		InitialEquity:  res.InitialValue,
		FinalEquity:    res.FinalValue,
		PeriodsPerYear: r.cfg.AnnualizationFactor,
	})

	r.logger.Info("Backtest finished",
		zap.Int("ticks", res.TicksProcessed),
		zap.Int("entries", res.EntryCount()),
		zap.Int("exits", res.ExitCount()),
		zap.Int("forced_exits", res.ForcedExits),
		zap.Int("stop_loss_exits", res.StopLossExits),
		zap.Int("missed_entries", len(res.MissedEntries)),
		zap.Int("data_gaps", len(res.DataGaps)),
		zap.Float64("total_return_pct", res.Metrics.TotalReturnPct),
		zap.Float64("max_drawdown_pct", res.Metrics.MaxDrawdownPct))
	return res, nil
}

func (r *BacktestRunner) recordGap(res *domain.BacktestResult, p domain.PricePoint, err error) {
	res.DataGaps = append(res.DataGaps, domain.DataGap{Timestamp: p.Timestamp, Reason: err.Error()})
	r.logger.Warn("Skipping invalid tick",
		zap.Time("at", p.Timestamp),
		zap.Error(err))
}

// checkOrder rejects input whose in-range timestamps are not strictly
// increasing. Ticks with no timestamp are left to the per-tick validation and
// ticks outside the range are never looked at.
func checkOrder(points []domain.PricePoint, window domain.DateRange) error {
	var prev time.Time
	for i, p := range points {
		if p.Timestamp.IsZero() || !window.Contains(p.Timestamp) {
			continue
		}
		if !prev.IsZero() && !p.Timestamp.After(prev) {
			return &domain.UnorderedDataError{Index: i, Previous: prev, Current: p.Timestamp}
		}
		prev = p.Timestamp
	}
	return nil
}

func isDataError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRate) ||
		errors.Is(err, domain.ErrMissingPrice) ||
		errors.Is(err, domain.ErrMissingTimestamp)
}
