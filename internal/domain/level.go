package domain

import "fmt"

// LevelKind distinguishes entry thresholds (premium) from exit thresholds (profit).
type LevelKind string

const (
	LevelEntry LevelKind = "ENTRY"
	LevelExit  LevelKind = "EXIT"
)

// Level is one rung of a ladder. Threshold is a percentage.
type Level struct {
	Threshold float64
	Kind      LevelKind
	Used      bool
}

func (l Level) String() string {
	return fmt.Sprintf("%s@%.2f%%", l.Kind, l.Threshold)
}

// Phase is the position of the strategy within a trading cycle.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseScalingIn  Phase = "SCALING_IN"
	PhaseScalingOut Phase = "SCALING_OUT"
)
