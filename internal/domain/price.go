package domain

import (
	"math"
	"time"
)

// PricePoint is one historical observation of both venues and the FX rate.
type PricePoint struct {
	Timestamp   time.Time `json:"timestamp"`
	VenueAPrice float64   `json:"venue_a_price"` // local currency quote on venue A
	VenueBPrice float64   `json:"venue_b_price"` // native currency quote on venue B
	FXRate      float64   `json:"fx_rate"`       // local currency per unit of venue B currency
}

// VenueBPriceLocal converts the venue B quote into venue A currency.
func (p PricePoint) VenueBPriceLocal() float64 {
	return p.VenueBPrice * p.FXRate
}

// Validate reports the first data problem of the tick, if any.
func (p PricePoint) Validate() error {
	if p.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if !validPrice(p.VenueAPrice) || !validPrice(p.VenueBPrice) {
		return ErrMissingPrice
	}
	if math.IsNaN(p.FXRate) || p.FXRate <= 0 {
		return &InvalidRateError{Rate: p.FXRate}
	}
	return nil
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// EquityPoint is a portfolio valuation in venue A currency.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DataGap records a tick that was skipped because its data was unusable.
type DataGap struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// DateRange bounds a replay. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}
