package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/usecase"
)

func TestLevelLadder_EntryFiresOnce(t *testing.T) {
	ladder := usecase.NewLevelLadder([]float64{-2, -3, -4}, []float64{0.5, 1.0})

	level, ok := ladder.NextUnusedEntry(-2.5)
	require.True(t, ok)
	assert.Equal(t, -2.0, level.Threshold)
	require.NoError(t, ladder.MarkUsed(level))

	_, ok = ladder.NextUnusedEntry(-2.5)
	assert.False(t, ok, "used level must not fire again")

	// Premium exactly at the threshold is not a crossing.
	_, ok = ladder.NextUnusedEntry(-3.0)
	assert.False(t, ok)
}

func TestLevelLadder_GapFiresNearestLevel(t *testing.T) {
	ladder := usecase.NewLevelLadder([]float64{-2, -3, -4}, []float64{0.5})

	var fired []float64
	for i := 0; i < 4; i++ {
		level, ok := ladder.NextUnusedEntry(-4.5)
		if !ok {
			break
		}
		require.NoError(t, ladder.MarkUsed(level))
		fired = append(fired, level.Threshold)
	}
	assert.Equal(t, []float64{-2, -3, -4}, fired)
	assert.Equal(t, 3, ladder.UsedCount(domain.LevelEntry))
}

func TestLevelLadder_ExitPicksHighestCrossed(t *testing.T) {
	ladder := usecase.NewLevelLadder([]float64{-2}, []float64{0.5, 1.0, 1.5})

	level, ok := ladder.NextUnusedExit(1.2)
	require.True(t, ok)
	assert.Equal(t, 1.0, level.Threshold)
	require.NoError(t, ladder.MarkUsed(level))

	level, ok = ladder.NextUnusedExit(1.2)
	require.True(t, ok)
	assert.Equal(t, 0.5, level.Threshold)

	_, ok = ladder.NextUnusedExit(0.4)
	assert.False(t, ok)
}

func TestLevelLadder_Reset(t *testing.T) {
	ladder := usecase.NewLevelLadder([]float64{-2, -3}, []float64{0.5})

	for _, lvl := range ladder.Levels() {
		require.NoError(t, ladder.MarkUsed(lvl))
	}
	assert.Equal(t, 2, ladder.UsedCount(domain.LevelEntry))
	assert.Equal(t, 1, ladder.UsedCount(domain.LevelExit))

	ladder.Reset()
	assert.Zero(t, ladder.UsedCount(domain.LevelEntry))
	assert.Zero(t, ladder.UsedCount(domain.LevelExit))
	for _, lvl := range ladder.Levels() {
		assert.False(t, lvl.Used, lvl.String())
	}
}

func TestLevelLadder_MarkUnknownLevel(t *testing.T) {
	ladder := usecase.NewLevelLadder([]float64{-2}, []float64{0.5})

	err := ladder.MarkUsed(domain.Level{Threshold: -7, Kind: domain.LevelEntry})
	assert.ErrorIs(t, err, domain.ErrLevelNotInLadder)
}
