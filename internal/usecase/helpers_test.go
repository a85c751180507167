package usecase_test

import (
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/infrastructure/pricefeed"
)

const (
	testVenueB = 50_000.0
	testFX     = 1_300.0
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() domain.BacktestConfig {
	return domain.BacktestConfig{
		EntryLevels:        []float64{-2, -3, -4},
		ExitLevels:         []float64{0.5, 1.0, 1.5},
		PositionPortion:    0.2,
		MaxOpenPositions:   3,
		LeverageMultiplier: 1,
		CommissionRateA:    0.0025,
		CommissionRateB:    0.001,
		SlippageRate:       0.001,
		InitialBalanceA:    100_000_000,
		InitialBalanceB:    100_000,
	}
}

func validConfig(c domain.BacktestConfig) domain.BacktestConfig {
	out, err := domain.NewBacktestConfig(c)
	if err != nil {
		panic(err)
	}
	return out
}

func ticks(premiums ...float64) []domain.PricePoint {
	return pricefeed.FromPremiums(testStart, time.Hour, testVenueB, testFX, premiums)
}

// cyclePremiums falls from 0 to -4.2 over 20 ticks and rebounds to +2.0
// over the next 10.
func cyclePremiums() []float64 {
	down := pricefeed.LinearPath(0, -4.2, 20)
	up := pricefeed.LinearPath(-4.2, 2.0, 11)
	return append(down, up[1:]...)
}
