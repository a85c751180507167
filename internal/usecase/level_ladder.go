package usecase

import (
	"fmt"

	"github.com/vitos/premium_backtest/internal/domain"
)

// LevelLadder holds the one-shot entry and exit thresholds of a trading cycle.
// It is per-run state: every engine owns its own ladder.
type LevelLadder struct {
	entries []domain.Level // strictly decreasing thresholds
	exits   []domain.Level // strictly increasing thresholds
}

func NewLevelLadder(entryThresholds, exitThresholds []float64) *LevelLadder {
	l := &LevelLadder{
		entries: make([]domain.Level, len(entryThresholds)),
		exits:   make([]domain.Level, len(exitThresholds)),
	}
	for i, t := range entryThresholds {
		l.entries[i] = domain.Level{Threshold: t, Kind: domain.LevelEntry}
	}
	for i, t := range exitThresholds {
		l.exits[i] = domain.Level{Threshold: t, Kind: domain.LevelExit}
	}
	return l
}

// NextUnusedEntry returns the unused entry level nearest to premium among
// those with premium < threshold. Deeper levels skipped over by a gap are left
// for later ticks, so at most one level fires per call.
func (l *LevelLadder) NextUnusedEntry(premium float64) (domain.Level, bool) {
	var (
		best  domain.Level
		found bool
	)
	for _, lvl := range l.entries {
		if lvl.Used || !(premium < lvl.Threshold) {
			continue
		}
		if !found || lvl.Threshold < best.Threshold {
			best = lvl
			found = true
		}
	}
	return best, found
}

// NextUnusedExit returns the unused exit level nearest to profitPct among
// those with profitPct > threshold.
func (l *LevelLadder) NextUnusedExit(profitPct float64) (domain.Level, bool) {
	var (
		best  domain.Level
		found bool
	)
	for _, lvl := range l.exits {
		if lvl.Used || !(profitPct > lvl.Threshold) {
			continue
		}
		if !found || lvl.Threshold > best.Threshold {
			best = lvl
			found = true
		}
	}
	return best, found
}

// MarkUsed flags the level so it cannot fire again until Reset.
func (l *LevelLadder) MarkUsed(level domain.Level) error {
	levels := l.entries
	if level.Kind == domain.LevelExit {
		levels = l.exits
	}
	for i := range levels {
		if levels[i].Threshold == level.Threshold {
			levels[i].Used = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrLevelNotInLadder, level)
}

// Reset clears every used flag. Callers reset only when no position is open.
func (l *LevelLadder) Reset() {
	for i := range l.entries {
		l.entries[i].Used = false
	}
	for i := range l.exits {
		l.exits[i].Used = false
	}
}

// UsedCount returns how many levels of the given kind have fired this cycle.
func (l *LevelLadder) UsedCount(kind domain.LevelKind) int {
	levels := l.entries
	if kind == domain.LevelExit {
		levels = l.exits
	}
	n := 0
	for _, lvl := range levels {
		if lvl.Used {
			n++
		}
	}
	return n
}

// Levels returns a copy of all levels, entries first.
func (l *LevelLadder) Levels() []domain.Level {
	out := make([]domain.Level, 0, len(l.entries)+len(l.exits))
	out = append(out, l.entries...)
	return append(out, l.exits...)
}
