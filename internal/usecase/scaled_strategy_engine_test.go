package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/usecase"
	"go.uber.org/zap"
)

type engineRun struct {
	entries int
	exits   int
	missed  []domain.MissedEntry
	resets  []int
}

func newEngine(cfg domain.BacktestConfig) *usecase.ScaledStrategyEngine {
	cfg = validConfig(cfg)
	return usecase.NewScaledStrategyEngine(cfg, usecase.NewStrategyState(cfg), zap.NewNop())
}

func feed(t *testing.T, engine *usecase.ScaledStrategyEngine, premiums ...float64) engineRun {
	t.Helper()
	var run engineRun
	for i, p := range ticks(premiums...) {
		out, err := engine.OnTick(p)
		require.NoError(t, err)
		for _, tr := range out.Trades {
			if tr.Action == domain.ActionEntry {
				run.entries++
			} else {
				run.exits++
			}
		}
		run.missed = append(run.missed, out.Missed...)
		if out.LadderReset {
			run.resets = append(run.resets, i)
		}
	}
	return run
}

func TestScaledStrategyEngine_OscillationEntersOnce(t *testing.T) {
	engine := newEngine(testConfig())

	run := feed(t, engine, 0, -2.1, -1.9, -2.1, -1.9, -2.1)

	assert.Equal(t, 1, run.entries, "a level fires once per cycle")
	assert.Zero(t, run.exits)
	assert.Equal(t, 1, engine.State().Ledger.OpenCount())
	assert.Equal(t, domain.PhaseScalingIn, engine.State().Phase())
}

func TestScaledStrategyEngine_GapFiresOneLevelPerTick(t *testing.T) {
	engine := newEngine(testConfig())

	run := feed(t, engine, -4.5)
	assert.Equal(t, 1, run.entries)

	run = feed(t, engine, -4.5, -4.5, -4.5)
	assert.Equal(t, 2, run.entries)
	assert.Equal(t, 3, engine.State().Ledger.OpenCount())

	levels := make([]float64, 0, 3)
	for _, pos := range engine.State().Ledger.OpenPositions() {
		levels = append(levels, pos.EntryLevel)
	}
	assert.Equal(t, []float64{-2, -3, -4}, levels)
}

func TestScaledStrategyEngine_ResetAfterFullExit(t *testing.T) {
	cfg := testConfig()
	cfg.EntryLevels = []float64{-2}
	cfg.ExitLevels = []float64{0.5}
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5, 0, -2.5)

	assert.Equal(t, 2, run.entries, "level re-arms after the ladder reset")
	assert.Equal(t, 1, run.exits)
	assert.Equal(t, []int{1}, run.resets)
	assert.Equal(t, 1, engine.State().Cycles)
	assert.Equal(t, 1, engine.State().Ledger.OpenCount())
}

func TestScaledStrategyEngine_NoResetWhilePositionsOpen(t *testing.T) {
	engine := newEngine(testConfig())

	// Two entries, then a rebound that only closes the deeper one.
	run := feed(t, engine, -2.5, -3.5, -2.2)

	assert.Equal(t, 2, run.entries)
	assert.Equal(t, 1, run.exits)
	assert.Empty(t, run.resets)
	assert.Equal(t, domain.PhaseScalingOut, engine.State().Phase())

	// The -2 level stays used until the cycle is flat.
	run = feed(t, engine, -2.5)
	assert.Zero(t, run.entries)
}

func TestScaledStrategyEngine_MaxPositionsMissedEntry(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOpenPositions = 1
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5, -3.5)

	assert.Equal(t, 1, run.entries)
	require.Len(t, run.missed, 1)
	assert.Equal(t, domain.MissedMaxPositions, run.missed[0].Reason)
	assert.Equal(t, -3.0, run.missed[0].Level)

	for _, lvl := range engine.State().Ladder.Levels() {
		if lvl.Threshold == -3 {
			assert.False(t, lvl.Used, "a missed level stays armed")
		}
	}
}

func TestScaledStrategyEngine_InsufficientCapital(t *testing.T) {
	cfg := testConfig()
	cfg.PositionPortion = 1
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5, -3.5)

	assert.Equal(t, 1, run.entries)
	require.Len(t, run.missed, 1)
	assert.Equal(t, domain.MissedInsufficientCapital, run.missed[0].Reason)

	state := engine.State()
	assert.GreaterOrEqual(t, state.Balances.VenueA, -1e-6)
	assert.GreaterOrEqual(t, state.Balances.VenueB, -1e-9)
}

func TestScaledStrategyEngine_BelowMinOrderSize(t *testing.T) {
	cfg := testConfig()
	cfg.MinOrderSize = 1000
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5)

	assert.Zero(t, run.entries)
	require.Len(t, run.missed, 1)
	assert.Equal(t, domain.MissedBelowMinOrderSize, run.missed[0].Reason)
}

func TestScaledStrategyEngine_ExposureCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionSize = 0.5 // one entry is roughly 0.31 units
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5, -3.5)

	assert.Equal(t, 1, run.entries)
	require.Len(t, run.missed, 1)
	assert.Equal(t, domain.MissedExposureCap, run.missed[0].Reason)
}

func TestScaledStrategyEngine_EntryDebitsBothVenues(t *testing.T) {
	engine := newEngine(testConfig())
	p := ticks(-2.5)[0]

	out, err := engine.OnTick(p)
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)

	tr := out.Trades[0]
	state := engine.State()
	costA := tr.LegA.Notional() + tr.LegA.Commission
	costB := tr.LegB.Notional() + tr.LegB.Commission
	assert.InDelta(t, 100_000_000-costA, state.Balances.VenueA, 1e-6)
	assert.InDelta(t, 100_000-costB, state.Balances.VenueB, 1e-9)

	// Equity only drops by commission and slippage.
	equity := state.Equity(p)
	lost := 100_000_000 + 100_000*testFX - equity
	assert.InDelta(t, tr.Commission+tr.Slippage, lost, 1e-3)
}

func TestScaledStrategyEngine_ForceClose(t *testing.T) {
	engine := newEngine(testConfig())
	feed(t, engine, -2.5, -3.5)

	trades, err := engine.ForceClose(ticks(-3.5)[0])
	require.NoError(t, err)
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.True(t, tr.Forced)
		assert.Equal(t, domain.ActionExit, tr.Action)
	}
	assert.Zero(t, engine.State().Ledger.OpenCount())
	assert.Equal(t, domain.PhaseIdle, engine.State().Phase())
}

func TestScaledStrategyEngine_InvalidTick(t *testing.T) {
	engine := newEngine(testConfig())

	p := ticks(-2.5)[0]
	p.FXRate = 0
	_, err := engine.OnTick(p)
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
	assert.Zero(t, engine.State().Ledger.OpenCount())
}

func TestScaledStrategyEngine_StopLoss(t *testing.T) {
	cfg := testConfig()
	cfg.EntryLevels = []float64{-2, -6}
	cfg.StopLossPct = 2
	engine := newEngine(cfg)

	points := ticks(-2.5, -4.0, -2.5)

	out, err := engine.OnTick(points[0])
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)

	// Profit is -4.0 - (-2.5) - 0.7 = -2.2, below -2.
	out, err = engine.OnTick(points[1])
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)
	closed := out.Trades[0]
	assert.Equal(t, domain.ActionExit, closed.Action)
	assert.True(t, closed.StopLoss)
	assert.False(t, closed.Forced)
	assert.Zero(t, closed.Level)
	assert.Less(t, closed.RealizedPnL, 0.0)
	assert.True(t, out.LadderReset)
	assert.Zero(t, engine.State().Ladder.UsedCount(domain.LevelExit), "a stop loss does not consume an exit level")

	out, err = engine.OnTick(points[2])
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, domain.ActionEntry, out.Trades[0].Action, "the reset ladder re-enters at -2")
}

func TestScaledStrategyEngine_StopLossDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EntryLevels = []float64{-2, -6}
	engine := newEngine(cfg)

	run := feed(t, engine, -2.5, -4.0, -5.5)
	assert.Equal(t, 1, run.entries)
	assert.Zero(t, run.exits)
	assert.Equal(t, 1, engine.State().Ledger.OpenCount())
}
