package usecase

import (
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
)

// OpenRequest carries the simulated entry of a hedged position.
type OpenRequest struct {
	EntryPremium float64
	EntryLevel   float64
	Size         float64
	LegA         domain.Fill // venue A buy
	LegB         domain.Fill // venue B short
	FXRate       float64
	Leverage     float64
	OpenedAt     time.Time
}

// ExitRequest carries the simulated closing fills of a position.
type ExitRequest struct {
	LegA     domain.Fill // venue A sell
	LegB     domain.Fill // venue B cover
	FXRate   float64
	ClosedAt time.Time
}

// PositionLedger owns every position of a run. Positions are only appended
// or marked closed, never removed, so the full history can be replayed.
type PositionLedger struct {
	maxOpen   int
	maxSize   float64
	positions []*domain.Position
	index     map[int64]int
	nextID    int64
	openCount int
	exposure  float64
}

// NewPositionLedger creates a ledger. maxSize caps the aggregate open size in
// base units; 0 disables the cap.
func NewPositionLedger(maxOpen int, maxSize float64) *PositionLedger {
	return &PositionLedger{
		maxOpen: maxOpen,
		maxSize: maxSize,
		index:   make(map[int64]int),
		nextID:  1,
	}
}

// OpenPosition stores a new open position and returns its id.
func (l *PositionLedger) OpenPosition(req OpenRequest) (int64, error) {
	if l.openCount >= l.maxOpen {
		return 0, &domain.CapacityExceededError{
			Reason: domain.MissedMaxPositions,
			Open:   l.openCount,
			Max:    l.maxOpen,
		}
	}
	if l.maxSize > 0 && l.exposure+req.Size > l.maxSize+sizeEpsilon {
		return 0, &domain.CapacityExceededError{
			Reason:   domain.MissedExposureCap,
			Exposure: l.exposure + req.Size,
			Cap:      l.maxSize,
		}
	}

	leverage := req.Leverage
	if leverage < 1 {
		leverage = 1
	}
	pos := &domain.Position{
		ID:             l.nextID,
		EntryPremium:   req.EntryPremium,
		EntryLevel:     req.EntryLevel,
		Size:           req.Size,
		VenueALeverage: 1,
		VenueBLeverage: leverage,
		OpenedAt:       req.OpenedAt,
		Status:         domain.PositionOpen,
		EntryPriceA:    req.LegA.Price,
		EntryPriceB:    req.LegB.Price,
		EntryFX:        req.FXRate,
		EntryCostA:     req.LegA.Commission,
		EntryCostB:     req.LegB.Commission,
		MarginB:        req.Size * req.LegB.Price / leverage,
	}
	l.nextID++
	l.index[pos.ID] = len(l.positions)
	l.positions = append(l.positions, pos)
	l.openCount++
	l.exposure += pos.Size
	return pos.ID, nil
}

// ClosePosition realizes the P&L of both legs and marks the position closed.
// The venue B leg is converted to venue A currency at the exit fx rate.
func (l *PositionLedger) ClosePosition(id int64, req ExitRequest) (domain.Position, error) {
	i, ok := l.index[id]
	if !ok {
		return domain.Position{}, &domain.NotFoundError{ID: id}
	}
	pos := l.positions[i]
	if !pos.IsOpen() {
		return domain.Position{}, &domain.NotFoundError{ID: id, AlreadyClose: true}
	}

	pnlA := pos.Size*(req.LegA.Price-pos.EntryPriceA) - pos.EntryCostA - req.LegA.Commission
	pnlB := pos.Size*(pos.EntryPriceB-req.LegB.Price) - pos.EntryCostB - req.LegB.Commission

	pos.Status = domain.PositionClosed
	pos.ClosedAt = req.ClosedAt
	pos.ExitPriceA = req.LegA.Price
	pos.ExitPriceB = req.LegB.Price
	pos.ExitFX = req.FXRate
	pos.ExitCostA = req.LegA.Commission
	pos.ExitCostB = req.LegB.Commission
	pos.RealizedPnL = pnlA + pnlB*req.FXRate

	l.openCount--
	l.exposure -= pos.Size
	if l.openCount == 0 {
		l.exposure = 0
	}
	return *pos, nil
}

func (l *PositionLedger) OpenCount() int {
	return l.openCount
}

// TotalExposure is the aggregate open size in base units.
func (l *PositionLedger) TotalExposure() float64 {
	return l.exposure
}

// OpenPositions returns copies of the open positions, oldest first.
func (l *PositionLedger) OpenPositions() []domain.Position {
	out := make([]domain.Position, 0, l.openCount)
	for _, p := range l.positions {
		if p.IsOpen() {
			out = append(out, *p)
		}
	}
	return out
}

// Positions returns copies of every position ever opened, in id order.
func (l *PositionLedger) Positions() []domain.Position {
	out := make([]domain.Position, len(l.positions))
	for i, p := range l.positions {
		out[i] = *p
	}
	return out
}

func (l *PositionLedger) Get(id int64) (domain.Position, bool) {
	i, ok := l.index[id]
	if !ok {
		return domain.Position{}, false
	}
	return *l.positions[i], true
}

// MarkToMarket values the open positions in venue A currency: the spot
// holding at the current venue A price plus the venue B margin and its
// unrealized short P&L converted at the current fx rate.
func (l *PositionLedger) MarkToMarket(p domain.PricePoint) float64 {
	total := 0.0
	for _, pos := range l.positions {
		if !pos.IsOpen() {
			continue
		}
		spot := pos.Size * p.VenueAPrice
		short := pos.MarginB + pos.Size*(pos.EntryPriceB-p.VenueBPrice)
		total += spot + short*p.FXRate
	}
	return total
}

// sizeEpsilon absorbs float noise when the cap is hit exactly.
const sizeEpsilon = 1e-12
