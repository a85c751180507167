package pricefeed

import (
	"context"
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
)

// FromPremiums builds a price series whose premium follows the given path.
// Venue B price and fx rate stay constant; venue A absorbs the premium.
func FromPremiums(start time.Time, step time.Duration, venueBPrice, fxRate float64, premiums []float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(premiums))
	local := venueBPrice * fxRate
	for i, pct := range premiums {
		points[i] = domain.PricePoint{
			Timestamp:   start.Add(time.Duration(i) * step),
			VenueAPrice: local * (1 + pct/100),
			VenueBPrice: venueBPrice,
			FXRate:      fxRate,
		}
	}
	return points
}

// LinearPath interpolates n evenly spaced values from..to, both included.
func LinearPath(from, to float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{from}
	}
	out := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	out[n-1] = to
	return out
}

// SeriesSource serves an in-memory price series. It implements
// domain.PriceSource.
type SeriesSource struct {
	Points []domain.PricePoint
}

func (s *SeriesSource) LoadPrices(ctx context.Context) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.PricePoint(nil), s.Points...), nil
}
