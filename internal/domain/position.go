package domain

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Venue string

const (
	VenueA Venue = "A" // spot venue quoted in local currency
	VenueB Venue = "B" // leveraged venue quoted in its own currency
)

type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is a hedged pair: long spot on venue A, short on venue B.
type Position struct {
	ID             int64
	EntryPremium   float64
	EntryLevel     float64
	Size           float64 // base asset units, identical on both legs
	VenueALeverage float64
	VenueBLeverage float64
	OpenedAt       time.Time
	Status         PositionStatus

	EntryPriceA float64 // realized fill price on venue A
	EntryPriceB float64 // realized fill price on venue B
	EntryFX     float64
	EntryCostA  float64 // venue A commission, venue A currency
	EntryCostB  float64 // venue B commission, venue B currency
	MarginB     float64 // collateral posted on venue B, venue B currency

	ClosedAt    time.Time
	ExitPriceA  float64
	ExitPriceB  float64
	ExitFX      float64
	ExitCostA   float64
	ExitCostB   float64
	RealizedPnL float64 // venue A currency
}

// IsOpen reports whether the position still carries exposure.
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// NotionalA is the venue A notional at entry.
func (p *Position) NotionalA() float64 {
	return p.Size * p.EntryPriceA
}

type TradeAction string

const (
	ActionEntry TradeAction = "ENTRY"
	ActionExit  TradeAction = "EXIT"
)

// Fill is the simulated execution of one leg.
type Fill struct {
	Venue         Venue
	Side          Side
	Amount        float64
	IntendedPrice float64
	Price         float64
	Commission    float64 // in the venue's own currency
	Slippage      float64 // cost versus the intended price, venue currency
}

// Notional is the realized notional of the fill.
func (f Fill) Notional() float64 {
	return f.Amount * f.Price
}

// Trade is an immutable record of one position action. Commission, Slippage
// and RealizedPnL are expressed in venue A currency.
type Trade struct {
	Timestamp   time.Time
	Action      TradeAction
	PositionID  int64
	Amount      float64
	Premium     float64
	Level       float64
	FXRate      float64
	LegA        Fill
	LegB        Fill
	Commission  float64
	Slippage    float64
	RealizedPnL float64
	Forced      bool // closed at the last tick of the run
	StopLoss    bool // closed because its profit fell below -stop_loss_pct
}

// IsClose reports whether the trade closed a position.
func (t Trade) IsClose() bool {
	return t.Action == ActionExit
}

// Missed entry reasons.
const (
	MissedMaxPositions        = "max_positions"
	MissedExposureCap         = "exposure_cap"
	MissedInsufficientCapital = "insufficient_capital"
	MissedBelowMinOrderSize   = "below_min_order_size"
)

// MissedEntry is a ladder signal that could not be acted upon.
type MissedEntry struct {
	Timestamp time.Time
	Level     float64
	Premium   float64
	Reason    string
}
