package domain

import (
	"fmt"
	"math"
)

// DefaultAnnualizationFactor assumes daily ticks over trading days.
const DefaultAnnualizationFactor = 252

// BacktestConfig is the validated, immutable configuration of one run.
// Obtain it through NewBacktestConfig; the zero value is not usable.
type BacktestConfig struct {
	EntryLevels         []float64 `yaml:"entry_levels" json:"entry_levels"`
	ExitLevels          []float64 `yaml:"exit_levels" json:"exit_levels"`
	PositionPortion     float64   `yaml:"position_portion" json:"position_portion"`
	MaxOpenPositions    int       `yaml:"max_open_positions" json:"max_open_positions"`
	LeverageMultiplier  float64   `yaml:"leverage_multiplier" json:"leverage_multiplier"`
	CommissionRateA     float64   `yaml:"commission_rate_a" json:"commission_rate_a"`
	CommissionRateB     float64   `yaml:"commission_rate_b" json:"commission_rate_b"`
	SlippageRate        float64   `yaml:"slippage_rate" json:"slippage_rate"`
	InitialBalanceA     float64   `yaml:"initial_balance_a" json:"initial_balance_a"`
	InitialBalanceB     float64   `yaml:"initial_balance_b" json:"initial_balance_b"`
	DateRange           DateRange `yaml:"date_range" json:"date_range"`
	MaxPositionSize     float64   `yaml:"max_position_size" json:"max_position_size"` // aggregate base units, 0 = no cap
	MinOrderSize        float64   `yaml:"min_order_size" json:"min_order_size"`
	AnnualizationFactor float64   `yaml:"annualization_factor" json:"annualization_factor"`
	StopLossPct         float64   `yaml:"stop_loss_pct" json:"stop_loss_pct"` // 0 = off
}

// NewBacktestConfig validates c and returns an independent copy.
// A zero AnnualizationFactor defaults to DefaultAnnualizationFactor.
func NewBacktestConfig(c BacktestConfig) (BacktestConfig, error) {
	out := c
	out.EntryLevels = append([]float64(nil), c.EntryLevels...)
	out.ExitLevels = append([]float64(nil), c.ExitLevels...)
	if out.AnnualizationFactor == 0 {
		out.AnnualizationFactor = DefaultAnnualizationFactor
	}
	if err := out.Validate(); err != nil {
		return BacktestConfig{}, err
	}
	return out, nil
}

// Validate checks every range constraint and reports all violations at once.
func (c BacktestConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.EntryLevels) == 0 {
		add("entry_levels must not be empty")
	}
	for i := range c.EntryLevels {
		if !finite(c.EntryLevels[i]) {
			add("entry_levels[%d] must be finite", i)
		} else if i > 0 && c.EntryLevels[i] >= c.EntryLevels[i-1] {
			add("entry_levels must be strictly decreasing (%v >= %v)", c.EntryLevels[i], c.EntryLevels[i-1])
		}
	}

	if len(c.ExitLevels) == 0 {
		add("exit_levels must not be empty")
	} else if c.ExitLevels[0] < 0 {
		add("exit_levels must start at or above zero, got %v", c.ExitLevels[0])
	}
	for i := range c.ExitLevels {
		if !finite(c.ExitLevels[i]) {
			add("exit_levels[%d] must be finite", i)
		} else if i > 0 && c.ExitLevels[i] <= c.ExitLevels[i-1] {
			add("exit_levels must be strictly increasing (%v <= %v)", c.ExitLevels[i], c.ExitLevels[i-1])
		}
	}

	if !(c.PositionPortion > 0 && c.PositionPortion <= 1) {
		add("position_portion must be in (0, 1], got %v", c.PositionPortion)
	}
	if c.MaxOpenPositions < 1 {
		add("max_open_positions must be >= 1, got %d", c.MaxOpenPositions)
	}
	if !(c.LeverageMultiplier >= 1) || math.IsInf(c.LeverageMultiplier, 0) {
		add("leverage_multiplier must be >= 1, got %v", c.LeverageMultiplier)
	}
	checkRate := func(name string, v float64) {
		if !(v >= 0 && v < 1) {
			add("%s must be in [0, 1), got %v", name, v)
		}
	}
	checkRate("commission_rate_a", c.CommissionRateA)
	checkRate("commission_rate_b", c.CommissionRateB)
	checkRate("slippage_rate", c.SlippageRate)

	if !(c.InitialBalanceA > 0) || math.IsInf(c.InitialBalanceA, 0) {
		add("initial_balance_a must be > 0, got %v", c.InitialBalanceA)
	}
	if !(c.InitialBalanceB > 0) || math.IsInf(c.InitialBalanceB, 0) {
		add("initial_balance_b must be > 0, got %v", c.InitialBalanceB)
	}
	if !c.DateRange.Start.IsZero() && !c.DateRange.End.IsZero() && c.DateRange.End.Before(c.DateRange.Start) {
		add("date_range end %s is before start %s", c.DateRange.End, c.DateRange.Start)
	}
	if !(c.MaxPositionSize >= 0) {
		add("max_position_size must be >= 0, got %v", c.MaxPositionSize)
	}
	if !(c.MinOrderSize >= 0) {
		add("min_order_size must be >= 0, got %v", c.MinOrderSize)
	}
	if !(c.StopLossPct >= 0) || math.IsInf(c.StopLossPct, 0) {
		add("stop_loss_pct must be >= 0, got %v", c.StopLossPct)
	}
	if !(c.AnnualizationFactor > 0) || math.IsInf(c.AnnualizationFactor, 0) {
		add("annualization_factor must be > 0, got %v", c.AnnualizationFactor)
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// RoundTripCommissionPct is the commission paid by a full open+close of both
// legs, as a percentage of notional.
func (c BacktestConfig) RoundTripCommissionPct() float64 {
	return 2 * (c.CommissionRateA + c.CommissionRateB) * 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
