package usecase

import "github.com/vitos/premium_backtest/internal/domain"

// PremiumCalculator normalises two venue quotes into a signed percentage spread.
type PremiumCalculator struct{}

func NewPremiumCalculator() *PremiumCalculator {
	return &PremiumCalculator{}
}

// Calculate returns ((A - B*fx) / (B*fx)) * 100.
// Negative values mean venue A trades at a discount.
func (c *PremiumCalculator) Calculate(p domain.PricePoint) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	converted := p.VenueBPriceLocal()
	return (p.VenueAPrice - converted) / converted * 100, nil
}
