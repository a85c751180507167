package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidConfig     = errors.New("invalid backtest config")
	ErrInvalidRate       = errors.New("invalid fx rate")
	ErrMissingPrice      = errors.New("missing or non-positive price")
	ErrMissingTimestamp  = errors.New("missing timestamp")
	ErrCapacityExceeded  = errors.New("position capacity exceeded")
	ErrPositionNotFound  = errors.New("position not found")
	ErrUnorderedData     = errors.New("price data not in strictly increasing timestamp order")
	ErrNoValidTicks      = errors.New("no valid ticks in range")
	ErrLevelNotInLadder  = errors.New("level not in ladder")
	ErrInvalidFillParams = errors.New("invalid fill parameters")
	ErrRunNotFound       = errors.New("backtest run not found")
)

// InvalidRateError is returned when the FX rate cannot normalise the premium.
type InvalidRateError struct {
	Rate float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid fx rate %v: must be > 0", e.Rate)
}

func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

// CapacityExceededError is returned by the ledger when a new position would
// break the position-count or aggregate size cap.
type CapacityExceededError struct {
	Reason   string
	Open     int
	Max      int
	Exposure float64
	Cap      float64
}

func (e *CapacityExceededError) Error() string {
	if e.Reason == MissedExposureCap {
		return fmt.Sprintf("position capacity exceeded: exposure %.8f would exceed cap %.8f", e.Exposure, e.Cap)
	}
	return fmt.Sprintf("position capacity exceeded: %d/%d positions open", e.Open, e.Max)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// NotFoundError is returned when closing an unknown or already closed position.
type NotFoundError struct {
	ID           int64
	AlreadyClose bool
}

func (e *NotFoundError) Error() string {
	if e.AlreadyClose {
		return fmt.Sprintf("position %d already closed", e.ID)
	}
	return fmt.Sprintf("position %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrPositionNotFound }

// UnorderedDataError points at the first tick that breaks timestamp order.
type UnorderedDataError struct {
	Index    int
	Previous time.Time
	Current  time.Time
}

func (e *UnorderedDataError) Error() string {
	return fmt.Sprintf("tick %d at %s is not after %s", e.Index, e.Current.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

func (e *UnorderedDataError) Unwrap() error { return ErrUnorderedData }

// ConfigError lists every violated config constraint.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
