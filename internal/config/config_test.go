package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/infrastructure/pricefeed"
)

const sample = `
backtest:
  entry_levels: [-2, -3, -4]
  exit_levels: [0.5, 1.0, 1.5]
  position_portion: 0.25
  commission_rate_a: 0.0025
  commission_rate_b: 0.001
  slippage_rate: 0.001
  initial_balance_a: 100000000
  initial_balance_b: 100000
  start_date: "2024-01-01"
  end_date: "2024-01-31"
data:
  prices_csv: prices.csv
sweep:
  workers: 2
  grid:
    entry_level_sets:
      - [-2, -3, -4]
      - [-1.5, -2.5]
    position_portions: [0.1, 0.2]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Nil(t, cfg.Backtest.MaxOpenPositions)
	assert.Nil(t, cfg.Backtest.LeverageMultiplier)
	assert.Equal(t, "backtest.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Sweep.Workers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Len(t, cfg.Sweep.Grid.EntryLevelSets, 2)
	assert.Equal(t, []float64{0.1, 0.2}, cfg.Sweep.Grid.PositionPortions)

	bc, err := cfg.BacktestConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.25, bc.PositionPortion)
	assert.Equal(t, 3, bc.MaxOpenPositions, "defaults to one slot per entry level")
	assert.Equal(t, 1.0, bc.LeverageMultiplier)
	assert.Equal(t, float64(domain.DefaultAnnualizationFactor), bc.AnnualizationFactor)
	assert.Zero(t, bc.StopLossPct)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bc.DateRange.Start)
	assert.True(t, bc.DateRange.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, bc.DateRange.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKTEST_LOG_LEVEL", "debug")
	t.Setenv("BACKTEST_DB_PATH", ":memory:")
	t.Setenv("BACKTEST_PRICES_CSV", "/data/other.csv")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "/data/other.csv", cfg.Data.PricesCSV)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "backtest: [unclosed"))
	assert.Error(t, err)
}

func TestBacktestConfig_Invalid(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
backtest:
  entry_levels: [-3, -2]
  exit_levels: [0.5]
  position_portion: 0.2
  initial_balance_a: 1
  initial_balance_b: 1
`))
	require.NoError(t, err)

	_, err = cfg.BacktestConfig()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg.Backtest.EntryLevels = []float64{-2, -3}
	cfg.Backtest.StartDate = "yesterday"
	_, err = cfg.BacktestConfig()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestBacktestConfig_ExplicitZeroIsNotDefaulted(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
backtest:
  entry_levels: [-2, -3]
  exit_levels: [0.5]
  position_portion: 0.2
  max_open_positions: 0
  leverage_multiplier: 0
  stop_loss_pct: -1
  initial_balance_a: 1
  initial_balance_b: 1
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Backtest.MaxOpenPositions)
	assert.Equal(t, 0, *cfg.Backtest.MaxOpenPositions)

	_, err = cfg.BacktestConfig()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.ErrorContains(t, err, "max_open_positions")
	assert.ErrorContains(t, err, "leverage_multiplier")
	assert.ErrorContains(t, err, "stop_loss_pct")
}

func TestDefault_SyntheticPoints(t *testing.T) {
	cfg := Default()

	_, err := cfg.BacktestConfig()
	require.NoError(t, err)

	points, err := cfg.SyntheticPoints()
	require.NoError(t, err)
	// Four legs of ten steps plus the first waypoint.
	require.Len(t, points, 41)
	assert.Equal(t, time.Hour, points[1].Timestamp.Sub(points[0].Timestamp))

	cfg.Data.Synthetic.Waypoints = []float64{1}
	_, err = cfg.SyntheticPoints()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestPriceSource(t *testing.T) {
	cfg := Default()
	cfg.Data.PricesCSV = "prices.csv"

	src, err := cfg.PriceSource(false)
	require.NoError(t, err)
	assert.IsType(t, &pricefeed.CSVSource{}, src)

	src, err = cfg.PriceSource(true)
	require.NoError(t, err)
	points, err := src.LoadPrices(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, points)
}
