package domain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/premium_backtest/internal/domain"
)

func baseConfig() domain.BacktestConfig {
	return domain.BacktestConfig{
		EntryLevels:        []float64{-2, -3},
		ExitLevels:         []float64{0, 1},
		PositionPortion:    0.5,
		MaxOpenPositions:   2,
		LeverageMultiplier: 3,
		InitialBalanceA:    1000,
		InitialBalanceB:    1,
	}
}

func TestNewBacktestConfig_DefaultsAndCopies(t *testing.T) {
	in := baseConfig()
	cfg, err := domain.NewBacktestConfig(in)
	require.NoError(t, err)

	assert.Equal(t, float64(domain.DefaultAnnualizationFactor), cfg.AnnualizationFactor)
	in.EntryLevels[0] = 5
	assert.Equal(t, -2.0, cfg.EntryLevels[0], "config must not alias the caller's slices")
}

func TestBacktestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.BacktestConfig)
	}{
		{"empty entries", func(c *domain.BacktestConfig) { c.EntryLevels = nil }},
		{"increasing entries", func(c *domain.BacktestConfig) { c.EntryLevels = []float64{-3, -2} }},
		{"duplicate entries", func(c *domain.BacktestConfig) { c.EntryLevels = []float64{-2, -2} }},
		{"empty exits", func(c *domain.BacktestConfig) { c.ExitLevels = nil }},
		{"negative first exit", func(c *domain.BacktestConfig) { c.ExitLevels = []float64{-0.5, 1} }},
		{"decreasing exits", func(c *domain.BacktestConfig) { c.ExitLevels = []float64{1, 0.5} }},
		{"zero portion", func(c *domain.BacktestConfig) { c.PositionPortion = 0 }},
		{"portion above one", func(c *domain.BacktestConfig) { c.PositionPortion = 1.01 }},
		{"no positions", func(c *domain.BacktestConfig) { c.MaxOpenPositions = 0 }},
		{"leverage below one", func(c *domain.BacktestConfig) { c.LeverageMultiplier = 0.5 }},
		{"negative commission", func(c *domain.BacktestConfig) { c.CommissionRateA = -0.001 }},
		{"full slippage", func(c *domain.BacktestConfig) { c.SlippageRate = 1 }},
		{"zero balance", func(c *domain.BacktestConfig) { c.InitialBalanceA = 0 }},
		{"nan entry", func(c *domain.BacktestConfig) { c.EntryLevels = []float64{math.NaN()} }},
		{"reversed dates", func(c *domain.BacktestConfig) {
			c.DateRange = domain.DateRange{Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		}},
		{"negative min order", func(c *domain.BacktestConfig) { c.MinOrderSize = -1 }},
		{"negative stop loss", func(c *domain.BacktestConfig) { c.StopLossPct = -2 }},
		{"nan stop loss", func(c *domain.BacktestConfig) { c.StopLossPct = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			_, err := domain.NewBacktestConfig(cfg)
			require.ErrorIs(t, err, domain.ErrInvalidConfig)

			var cfgErr *domain.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.NotEmpty(t, cfgErr.Problems)
		})
	}
}

func TestBacktestConfig_RoundTripCommission(t *testing.T) {
	cfg := baseConfig()
	cfg.CommissionRateA = 0.0025
	cfg.CommissionRateB = 0.001
	assert.InDelta(t, 0.7, cfg.RoundTripCommissionPct(), 1e-12)
}

func TestDateRange_Contains(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	r := domain.DateRange{Start: jan, End: feb}

	assert.True(t, r.Contains(jan))
	assert.True(t, r.Contains(feb))
	assert.False(t, r.Contains(jan.Add(-time.Second)))
	assert.False(t, r.Contains(feb.Add(time.Second)))
	assert.True(t, domain.DateRange{}.Contains(jan), "open range")
}

func TestPricePoint_Validate(t *testing.T) {
	ok := domain.PricePoint{Timestamp: time.Now(), VenueAPrice: 1300, VenueBPrice: 1, FXRate: 1350}
	assert.NoError(t, ok.Validate())
	assert.InDelta(t, 1350, ok.VenueBPriceLocal(), 1e-12)

	bad := ok
	bad.FXRate = 0
	var rateErr *domain.InvalidRateError
	assert.True(t, errors.As(bad.Validate(), &rateErr))

	bad = ok
	bad.VenueBPrice = math.Inf(1)
	assert.ErrorIs(t, bad.Validate(), domain.ErrMissingPrice)
}

func TestBalances_Value(t *testing.T) {
	b := domain.Balances{VenueA: 1000, VenueB: 2}
	assert.Equal(t, 3700.0, b.Value(1350))
}
