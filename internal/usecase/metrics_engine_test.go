package usecase_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/usecase"
)

func exits(pnls ...float64) []domain.Trade {
	trades := []domain.Trade{{Action: domain.ActionEntry}}
	for _, pnl := range pnls {
		trades = append(trades, domain.Trade{Action: domain.ActionExit, RealizedPnL: pnl})
	}
	return trades
}

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour), Value: v}
	}
	return out
}

func TestMetricsEngine_NoLossesGivesInfiniteProfitFactor(t *testing.T) {
	m := usecase.NewMetricsEngine().Compute(exits(10, 5), curve(100, 115), usecase.MetricsOptions{})

	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.Equal(t, 100.0, m.WinRate)
	assert.Equal(t, 2, m.ClosedTrades)
	assert.InDelta(t, 15.0, m.TotalReturnPct, 1e-9)
}

func TestMetricsEngine_NoClosedTrades(t *testing.T) {
	m := usecase.NewMetricsEngine().Compute(exits(), curve(100, 100), usecase.MetricsOptions{})

	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.ClosedTrades)
	assert.Zero(t, m.TotalReturnPct)
}

func TestMetricsEngine_MixedTrades(t *testing.T) {
	m := usecase.NewMetricsEngine().Compute(exits(10, -5, 0, 20), curve(100, 125), usecase.MetricsOptions{})

	assert.Equal(t, 4, m.ClosedTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.Equal(t, 50.0, m.WinRate)
	assert.InDelta(t, 6.0, m.ProfitFactor, 1e-12)
	assert.InDelta(t, 15.0, m.AverageWin, 1e-12)
	assert.InDelta(t, 5.0, m.AverageLoss, 1e-12)
	assert.InDelta(t, 25.0, m.NetPnL, 1e-12)
}

func TestMetricsEngine_ExplicitEquityOverridesCurve(t *testing.T) {
	m := usecase.NewMetricsEngine().Compute(nil, curve(100, 90), usecase.MetricsOptions{
		InitialEquity: 200,
		FinalEquity:   210,
	})
	assert.InDelta(t, 5.0, m.TotalReturnPct, 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 25.0, usecase.MaxDrawdown(curve(100, 120, 90, 130)), 1e-12)
	assert.Zero(t, usecase.MaxDrawdown(curve(100, 110, 120)))
	assert.Zero(t, usecase.MaxDrawdown(nil))

	series := usecase.DrawdownSeries(curve(100, 120, 90, 130))
	assert.Len(t, series, 4)
	assert.InDelta(t, 0.0, series[1].Value, 1e-12)
	assert.InDelta(t, 25.0, series[2].Value, 1e-12)
	assert.InDelta(t, 0.0, series[3].Value, 1e-12)
}

func TestSharpeRatio(t *testing.T) {
	// Constant returns have no variance.
	assert.Zero(t, usecase.SharpeRatio(curve(100, 110, 121), 252))
	assert.Zero(t, usecase.SharpeRatio(curve(100, 110), 252))

	points := curve(100, 110, 105, 120)
	raw := usecase.SharpeRatio(points, 0)
	assert.Greater(t, raw, 0.0)
	assert.InDelta(t, raw*math.Sqrt(252), usecase.SharpeRatio(points, 252), 1e-9)
}
