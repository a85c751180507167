package domain

import "time"

// Balances are realized cash balances per venue currency.
type Balances struct {
	VenueA float64 `json:"venue_a"`
	VenueB float64 `json:"venue_b"`
}

// Value expresses both balances in venue A currency.
func (b Balances) Value(fxRate float64) float64 {
	return b.VenueA + b.VenueB*fxRate
}

// Metrics summarises a completed run.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRate        float64 `json:"win_rate"` // percent of closed trades
	ProfitFactor   float64 `json:"profit_factor"`
	SharpeRatio    float64 `json:"sharpe_ratio"`

	ClosedTrades  int     `json:"closed_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	NetPnL        float64 `json:"net_pnl"`
}

// BacktestResult is everything a run produces.
type BacktestResult struct {
	StartedAt     time.Time
	EndedAt       time.Time
	InitialValue  float64
	FinalValue    float64
	FinalBalances Balances
	Trades        []Trade
	EquityCurve   []EquityPoint
	Metrics       Metrics

	TicksProcessed    int
	SkippedOutOfRange int
	DataGaps          []DataGap
	MissedEntries     []MissedEntry
	ForcedExits       int
	StopLossExits     int
	LadderResets      int
}

// EntryCount returns the number of entry trades.
func (r *BacktestResult) EntryCount() int {
	n := 0
	for _, t := range r.Trades {
		if t.Action == ActionEntry {
			n++
		}
	}
	return n
}

// ExitCount returns the number of exit trades, forced ones included.
func (r *BacktestResult) ExitCount() int {
	n := 0
	for _, t := range r.Trades {
		if t.Action == ActionExit {
			n++
		}
	}
	return n
}

// MissedByReason groups missed entries by reason.
func (r *BacktestResult) MissedByReason() map[string]int {
	out := make(map[string]int)
	for _, m := range r.MissedEntries {
		out[m.Reason]++
	}
	return out
}
