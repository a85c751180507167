package web

import (
	"math"
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
)

// JSON cannot carry +Inf, so an unbounded profit factor is sent as null
// with profit_factor_infinite set.

type MetricsView struct {
	TotalReturnPct       float64  `json:"total_return_pct"`
	MaxDrawdownPct       float64  `json:"max_drawdown_pct"`
	WinRate              float64  `json:"win_rate"`
	ProfitFactor         *float64 `json:"profit_factor"`
	ProfitFactorInfinite bool     `json:"profit_factor_infinite,omitempty"`
	SharpeRatio          float64  `json:"sharpe_ratio"`
	ClosedTrades         int      `json:"closed_trades"`
	WinningTrades        int      `json:"winning_trades"`
	LosingTrades         int      `json:"losing_trades"`
	NetPnL               float64  `json:"net_pnl"`
}

type TradeView struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	PositionID  int64     `json:"position_id"`
	Amount      float64   `json:"amount"`
	Premium     float64   `json:"premium"`
	Level       float64   `json:"level"`
	FXRate      float64   `json:"fx_rate"`
	PriceA      float64   `json:"price_a"`
	PriceB      float64   `json:"price_b"`
	Commission  float64   `json:"commission"`
	Slippage    float64   `json:"slippage"`
	RealizedPnL float64   `json:"realized_pnl"`
	Forced      bool      `json:"forced,omitempty"`
	StopLoss    bool      `json:"stop_loss,omitempty"`
}

type MissedView struct {
	Timestamp time.Time `json:"timestamp"`
	Level     float64   `json:"level"`
	Premium   float64   `json:"premium"`
	Reason    string    `json:"reason"`
}

type ResultView struct {
	RunID             string               `json:"run_id,omitempty"`
	StartedAt         time.Time            `json:"started_at"`
	EndedAt           time.Time            `json:"ended_at"`
	InitialValue      float64              `json:"initial_value"`
	FinalValue        float64              `json:"final_value"`
	FinalBalances     domain.Balances      `json:"final_balances"`
	Metrics           MetricsView          `json:"metrics"`
	TicksProcessed    int                  `json:"ticks_processed"`
	SkippedOutOfRange int                  `json:"skipped_out_of_range"`
	DataGaps          []domain.DataGap     `json:"data_gaps,omitempty"`
	ForcedExits       int                  `json:"forced_exits"`
	StopLossExits     int                  `json:"stop_loss_exits"`
	LadderResets      int                  `json:"ladder_resets"`
	Trades            []TradeView          `json:"trades"`
	MissedEntries     []MissedView         `json:"missed_entries,omitempty"`
	EquityCurve       []domain.EquityPoint `json:"equity_curve,omitempty"`
}

type RunView struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	CreatedAt            time.Time `json:"created_at"`
	StartedAt            time.Time `json:"started_at"`
	EndedAt              time.Time `json:"ended_at"`
	InitialValue         float64   `json:"initial_value"`
	FinalValue           float64   `json:"final_value"`
	TotalReturnPct       float64   `json:"total_return_pct"`
	MaxDrawdownPct       float64   `json:"max_drawdown_pct"`
	WinRate              float64   `json:"win_rate"`
	ProfitFactor         *float64  `json:"profit_factor"`
	ProfitFactorInfinite bool      `json:"profit_factor_infinite,omitempty"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	EntryCount           int       `json:"entry_count"`
	ExitCount            int       `json:"exit_count"`
	MissedEntries        int       `json:"missed_entries"`
	DataGaps             int       `json:"data_gaps"`
	ConfigYAML           string    `json:"config_yaml,omitempty"`
}

func profitFactor(v float64) (*float64, bool) {
	if math.IsInf(v, 1) {
		return nil, true
	}
	return &v, false
}

func toMetricsView(m domain.Metrics) MetricsView {
	pf, inf := profitFactor(m.ProfitFactor)
	return MetricsView{
		TotalReturnPct:       m.TotalReturnPct,
		MaxDrawdownPct:       m.MaxDrawdownPct,
		WinRate:              m.WinRate,
		ProfitFactor:         pf,
		ProfitFactorInfinite: inf,
		SharpeRatio:          m.SharpeRatio,
		ClosedTrades:         m.ClosedTrades,
		WinningTrades:        m.WinningTrades,
		LosingTrades:         m.LosingTrades,
		NetPnL:               m.NetPnL,
	}
}

func toTradeViews(trades []domain.Trade) []TradeView {
	out := make([]TradeView, len(trades))
	for i, t := range trades {
		out[i] = TradeView{
			Timestamp:   t.Timestamp,
			Action:      string(t.Action),
			PositionID:  t.PositionID,
			Amount:      t.Amount,
			Premium:     t.Premium,
			Level:       t.Level,
			FXRate:      t.FXRate,
			PriceA:      t.LegA.Price,
			PriceB:      t.LegB.Price,
			Commission:  t.Commission,
			Slippage:    t.Slippage,
			RealizedPnL: t.RealizedPnL,
			Forced:      t.Forced,
			StopLoss:    t.StopLoss,
		}
	}
	return out
}

func toResultView(runID string, res *domain.BacktestResult, withEquity bool) ResultView {
	v := ResultView{
		RunID:             runID,
		StartedAt:         res.StartedAt,
		EndedAt:           res.EndedAt,
		InitialValue:      res.InitialValue,
		FinalValue:        res.FinalValue,
		FinalBalances:     res.FinalBalances,
		Metrics:           toMetricsView(res.Metrics),
		TicksProcessed:    res.TicksProcessed,
		SkippedOutOfRange: res.SkippedOutOfRange,
		DataGaps:          res.DataGaps,
		ForcedExits:       res.ForcedExits,
		StopLossExits:     res.StopLossExits,
		LadderResets:      res.LadderResets,
		Trades:            toTradeViews(res.Trades),
	}
	for _, m := range res.MissedEntries {
		v.MissedEntries = append(v.MissedEntries, MissedView(m))
	}
	if withEquity {
		v.EquityCurve = res.EquityCurve
	}
	return v
}

func toRunView(r *domain.RunSummary, withConfig bool) RunView {
	pf, inf := profitFactor(r.ProfitFactor)
	v := RunView{
		ID:                   r.ID,
		Name:                 r.Name,
		CreatedAt:            r.CreatedAt,
		StartedAt:            r.StartedAt,
		EndedAt:              r.EndedAt,
		InitialValue:         r.InitialValue,
		FinalValue:           r.FinalValue,
		TotalReturnPct:       r.TotalReturnPct,
		MaxDrawdownPct:       r.MaxDrawdownPct,
		WinRate:              r.WinRate,
		ProfitFactor:         pf,
		ProfitFactorInfinite: inf,
		SharpeRatio:          r.SharpeRatio,
		EntryCount:           r.EntryCount,
		ExitCount:            r.ExitCount,
		MissedEntries:        r.MissedEntries,
		DataGaps:             r.DataGaps,
	}
	if withConfig {
		v.ConfigYAML = r.ConfigYAML
	}
	return v
}
