package usecase

import (
	"math"

	"github.com/vitos/premium_backtest/internal/domain"
)

// MetricsOptions tunes MetricsEngine. Zero InitialEquity/FinalEquity fall back
// to the first/last equity curve point.
type MetricsOptions struct {
	InitialEquity  float64
	FinalEquity    float64
	PeriodsPerYear float64
}

// MetricsEngine derives performance statistics from a finished run.
type MetricsEngine struct{}

func NewMetricsEngine() *MetricsEngine {
	return &MetricsEngine{}
}

// Compute is a pure function of the trade log and equity curve.
func (m *MetricsEngine) Compute(trades []domain.Trade, curve []domain.EquityPoint, opts MetricsOptions) domain.Metrics {
	var res domain.Metrics

	for _, t := range trades {
		if !t.IsClose() {
			continue
		}
		res.ClosedTrades++
		res.NetPnL += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			res.WinningTrades++
			res.GrossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			res.LosingTrades++
			res.GrossLoss += -t.RealizedPnL
		}
	}

	if res.ClosedTrades > 0 {
		res.WinRate = 100 * float64(res.WinningTrades) / float64(res.ClosedTrades)
	}
	if res.WinningTrades > 0 {
		res.AverageWin = res.GrossProfit / float64(res.WinningTrades)
	}
	if res.LosingTrades > 0 {
		res.AverageLoss = res.GrossLoss / float64(res.LosingTrades)
	}

	switch {
	case res.GrossProfit == 0:
		res.ProfitFactor = 0
	case res.GrossLoss == 0:
		res.ProfitFactor = math.Inf(1)
	default:
		res.ProfitFactor = res.GrossProfit / res.GrossLoss
	}

	initial, final := opts.InitialEquity, opts.FinalEquity
	if len(curve) > 0 {
		if initial == 0 {
			initial = curve[0].Value
		}
		if final == 0 {
			final = curve[len(curve)-1].Value
		}
	}
	if initial > 0 {
		res.TotalReturnPct = (final - initial) / initial * 100
	}

	res.MaxDrawdownPct = MaxDrawdown(curve)
	res.SharpeRatio = SharpeRatio(curve, opts.PeriodsPerYear)
	return res
}

// MaxDrawdown is the largest peak-to-trough decline of the curve, in percent.
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	maxDD := 0.0
	for _, p := range DrawdownSeries(curve) {
		if p.Value > maxDD {
			maxDD = p.Value
		}
	}
	return maxDD
}

// DrawdownSeries returns, per curve point, the decline from the running peak
// in percent.
func DrawdownSeries(curve []domain.EquityPoint) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(curve))
	peak := math.Inf(-1)
	for i, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Value) / peak * 100
		}
		out[i] = domain.EquityPoint{Timestamp: p.Timestamp, Value: dd}
	}
	return out
}

// SharpeRatio is mean/stdev of per-period returns scaled by sqrt(periodsPerYear).
// A non-positive periodsPerYear disables annualization.
func SharpeRatio(curve []domain.EquityPoint, periodsPerYear float64) float64 {
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Value/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std < 1e-15 {
		return 0
	}

	sharpe := mean / std
	if periodsPerYear > 0 {
		sharpe *= math.Sqrt(periodsPerYear)
	}
	return sharpe
}
