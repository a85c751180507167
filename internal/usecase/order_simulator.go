package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/premium_backtest/internal/domain"
)

// OrderSimulator turns an intended price into a realized fill with costs.
type OrderSimulator struct {
	commissionA float64
	commissionB float64
	slippage    float64
}

func NewOrderSimulator(commissionA, commissionB, slippage float64) *OrderSimulator {
	return &OrderSimulator{
		commissionA: commissionA,
		commissionB: commissionB,
		slippage:    slippage,
	}
}

// SimulateFill applies adverse slippage (buys pay more, sells receive less)
// and charges commission on the realized notional.
func (s *OrderSimulator) SimulateFill(intendedPrice, amount float64, side domain.Side, venue domain.Venue) (domain.Fill, error) {
	if !(intendedPrice > 0) || math.IsInf(intendedPrice, 0) || !(amount > 0) {
		return domain.Fill{}, fmt.Errorf("%w: price %v amount %v", domain.ErrInvalidFillParams, intendedPrice, amount)
	}

	var price float64
	switch side {
	case domain.SideBuy:
		price = intendedPrice * (1 + s.slippage)
	case domain.SideSell:
		price = intendedPrice * (1 - s.slippage)
	default:
		return domain.Fill{}, fmt.Errorf("%w: side %q", domain.ErrInvalidFillParams, side)
	}

	var rate float64
	switch venue {
	case domain.VenueA:
		rate = s.commissionA
	case domain.VenueB:
		rate = s.commissionB
	default:
		return domain.Fill{}, fmt.Errorf("%w: venue %q", domain.ErrInvalidFillParams, venue)
	}

	return domain.Fill{
		Venue:         venue,
		Side:          side,
		Amount:        amount,
		IntendedPrice: intendedPrice,
		Price:         price,
		Commission:    amount * price * rate,
		Slippage:      math.Abs(price-intendedPrice) * amount,
	}, nil
}
