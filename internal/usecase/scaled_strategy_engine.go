package usecase

import (
	"errors"
	"fmt"
	"math"

	"github.com/vitos/premium_backtest/internal/domain"
	"go.uber.org/zap"
)

// StrategyState is the mutable state of one run: ladder, ledger and cash.
// It is created per run and never shared between engines.
type StrategyState struct {
	Ladder       *LevelLadder
	Ledger       *PositionLedger
	Balances     domain.Balances
	CycleCapital domain.Balances // realized balances when the current cycle began
	Cycles       int
}

func NewStrategyState(cfg domain.BacktestConfig) *StrategyState {
	balances := domain.Balances{VenueA: cfg.InitialBalanceA, VenueB: cfg.InitialBalanceB}
	return &StrategyState{
		Ladder:       NewLevelLadder(cfg.EntryLevels, cfg.ExitLevels),
		Ledger:       NewPositionLedger(cfg.MaxOpenPositions, cfg.MaxPositionSize),
		Balances:     balances,
		CycleCapital: balances,
	}
}

// Phase derives the cycle phase from ladder and ledger.
func (s *StrategyState) Phase() domain.Phase {
	switch {
	case s.Ledger.OpenCount() == 0:
		return domain.PhaseIdle
	case s.Ladder.UsedCount(domain.LevelExit) > 0:
		return domain.PhaseScalingOut
	default:
		return domain.PhaseScalingIn
	}
}

// Equity values cash plus open positions in venue A currency.
func (s *StrategyState) Equity(p domain.PricePoint) float64 {
	return s.Balances.Value(p.FXRate) + s.Ledger.MarkToMarket(p)
}

// TickOutcome is what the engine did with one tick.
type TickOutcome struct {
	Premium     float64
	Trades      []domain.Trade
	Missed      []domain.MissedEntry
	LadderReset bool
	Phase       domain.Phase
}

// ScaledStrategyEngine decides, per tick, which ladder levels open or close
// partial positions.
type ScaledStrategyEngine struct {
	cfg       domain.BacktestConfig
	premiums  *PremiumCalculator
	simulator *OrderSimulator
	state     *StrategyState
	logger    *zap.Logger
}

func NewScaledStrategyEngine(cfg domain.BacktestConfig, state *StrategyState, logger *zap.Logger) *ScaledStrategyEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScaledStrategyEngine{
		cfg:       cfg,
		premiums:  NewPremiumCalculator(),
		simulator: NewOrderSimulator(cfg.CommissionRateA, cfg.CommissionRateB, cfg.SlippageRate),
		state:     state,
		logger:    logger,
	}
}

func (e *ScaledStrategyEngine) State() *StrategyState {
	return e.state
}

// OnTick runs one step of the state machine. Data errors are returned as-is
// so the caller can record a gap; ledger contract violations are fatal.
func (e *ScaledStrategyEngine) OnTick(p domain.PricePoint) (TickOutcome, error) {
	premium, err := e.premiums.Calculate(p)
	if err != nil {
		return TickOutcome{}, err
	}
	out := TickOutcome{Premium: premium}

	if err := e.evaluateEntry(p, premium, &out); err != nil {
		return out, err
	}
	if err := e.evaluateExits(p, premium, &out); err != nil {
		return out, err
	}
	out.LadderReset = e.resetIfFlat(p)
	out.Phase = e.state.Phase()
	return out, nil
}

func (e *ScaledStrategyEngine) evaluateEntry(p domain.PricePoint, premium float64, out *TickOutcome) error {
	ledger := e.state.Ledger
	level, ok := e.state.Ladder.NextUnusedEntry(premium)
	if !ok {
		return nil
	}
	if ledger.OpenCount() >= e.cfg.MaxOpenPositions {
		e.miss(p, level, premium, domain.MissedMaxPositions, out)
		return nil
	}

	size := e.entrySize(p)
	if !(size > 0) || size < e.cfg.MinOrderSize {
		e.miss(p, level, premium, domain.MissedBelowMinOrderSize, out)
		return nil
	}

	legA, err := e.simulator.SimulateFill(p.VenueAPrice, size, domain.SideBuy, domain.VenueA)
	if err != nil {
		return err
	}
	legB, err := e.simulator.SimulateFill(p.VenueBPrice, size, domain.SideSell, domain.VenueB)
	if err != nil {
		return err
	}

	costA := legA.Notional() + legA.Commission
	marginB := legB.Notional() / e.cfg.LeverageMultiplier
	costB := marginB + legB.Commission
	if exceeds(costA, e.state.Balances.VenueA) || exceeds(costB, e.state.Balances.VenueB) {
		e.miss(p, level, premium, domain.MissedInsufficientCapital, out)
		return nil
	}

	id, err := ledger.OpenPosition(OpenRequest{
		EntryPremium: premium,
		EntryLevel:   level.Threshold,
		Size:         size,
		LegA:         legA,
		LegB:         legB,
		FXRate:       p.FXRate,
		Leverage:     e.cfg.LeverageMultiplier,
		OpenedAt:     p.Timestamp,
	})
	if err != nil {
		var capErr *domain.CapacityExceededError
		if errors.As(err, &capErr) {
			e.miss(p, level, premium, capErr.Reason, out)
			return nil
		}
		return err
	}
	if err := e.state.Ladder.MarkUsed(level); err != nil {
		return err
	}

	e.state.Balances.VenueA -= costA
	e.state.Balances.VenueB -= costB

	trade := domain.Trade{
		Timestamp:  p.Timestamp,
		Action:     domain.ActionEntry,
		PositionID: id,
		Amount:     size,
		Premium:    premium,
		Level:      level.Threshold,
		FXRate:     p.FXRate,
		LegA:       legA,
		LegB:       legB,
		Commission: legA.Commission + legB.Commission*p.FXRate,
		Slippage:   legA.Slippage + legB.Slippage*p.FXRate,
	}
	out.Trades = append(out.Trades, trade)

	e.logger.Info("Entry level triggered",
		zap.Time("at", p.Timestamp),
		zap.Float64("level", level.Threshold),
		zap.Float64("premium", premium),
		zap.Int64("position_id", id),
		zap.Float64("size", size),
		zap.Int("open_positions", ledger.OpenCount()))
	return nil
}

// entrySize is position_portion of the cycle capital, bounded by both legs:
// venue A pays notional plus commission, venue B posts margin plus commission.
func (e *ScaledStrategyEngine) entrySize(p domain.PricePoint) float64 {
	budgetA := e.cfg.PositionPortion * e.state.CycleCapital.VenueA
	budgetB := e.cfg.PositionPortion * e.state.CycleCapital.VenueB

	priceA := p.VenueAPrice * (1 + e.cfg.SlippageRate)
	priceB := p.VenueBPrice * (1 - e.cfg.SlippageRate)
	lev := e.cfg.LeverageMultiplier

	sizeA := budgetA / (priceA * (1 + e.cfg.CommissionRateA))
	sizeB := budgetB / (priceB * (1/lev + e.cfg.CommissionRateB))
	return math.Min(sizeA, sizeB)
}

// exitKind says why a position is being closed.
type exitKind int

const (
	exitLevel exitKind = iota
	exitStopLoss
	exitForced
)

// evaluateExits closes positions that crossed an exit level. With a stop loss
// configured, a position whose profit fell below -StopLossPct is closed
// without consuming an exit level.
func (e *ScaledStrategyEngine) evaluateExits(p domain.PricePoint, premium float64, out *TickOutcome) error {
	roundTrip := e.cfg.RoundTripCommissionPct()
	for _, pos := range e.state.Ledger.OpenPositions() {
		profitPct := premium - pos.EntryPremium - roundTrip

		if e.cfg.StopLossPct > 0 && profitPct < -e.cfg.StopLossPct {
			trade, err := e.closePosition(pos, p, premium, 0, exitStopLoss)
			if err != nil {
				return err
			}
			out.Trades = append(out.Trades, trade)

			e.logger.Warn("Stop loss triggered",
				zap.Time("at", p.Timestamp),
				zap.Float64("profit_pct", profitPct),
				zap.Float64("stop_loss_pct", e.cfg.StopLossPct),
				zap.Int64("position_id", pos.ID),
				zap.Float64("realized_pnl", trade.RealizedPnL))
			continue
		}

		level, ok := e.state.Ladder.NextUnusedExit(profitPct)
		if !ok {
			continue
		}
		trade, err := e.closePosition(pos, p, premium, level.Threshold, exitLevel)
		if err != nil {
			return err
		}
		if err := e.state.Ladder.MarkUsed(level); err != nil {
			return err
		}
		out.Trades = append(out.Trades, trade)

		e.logger.Info("Exit level triggered",
			zap.Time("at", p.Timestamp),
			zap.Float64("level", level.Threshold),
			zap.Float64("profit_pct", profitPct),
			zap.Int64("position_id", pos.ID),
			zap.Float64("realized_pnl", trade.RealizedPnL))
	}
	return nil
}

// ForceClose closes every open position at p regardless of the exit ladder.
func (e *ScaledStrategyEngine) ForceClose(p domain.PricePoint) ([]domain.Trade, error) {
	premium, err := e.premiums.Calculate(p)
	if err != nil {
		return nil, fmt.Errorf("force close: %w", err)
	}
	var trades []domain.Trade
	for _, pos := range e.state.Ledger.OpenPositions() {
		trade, err := e.closePosition(pos, p, premium, 0, exitForced)
		if err != nil {
			return trades, err
		}
		trades = append(trades, trade)
		e.logger.Info("Forced exit",
			zap.Time("at", p.Timestamp),
			zap.Int64("position_id", pos.ID),
			zap.Float64("premium", premium),
			zap.Float64("realized_pnl", trade.RealizedPnL))
	}
	e.resetIfFlat(p)
	return trades, nil
}

func (e *ScaledStrategyEngine) closePosition(pos domain.Position, p domain.PricePoint, premium, level float64, kind exitKind) (domain.Trade, error) {
	legA, err := e.simulator.SimulateFill(p.VenueAPrice, pos.Size, domain.SideSell, domain.VenueA)
	if err != nil {
		return domain.Trade{}, err
	}
	legB, err := e.simulator.SimulateFill(p.VenueBPrice, pos.Size, domain.SideBuy, domain.VenueB)
	if err != nil {
		return domain.Trade{}, err
	}

	closed, err := e.state.Ledger.ClosePosition(pos.ID, ExitRequest{
		LegA:     legA,
		LegB:     legB,
		FXRate:   p.FXRate,
		ClosedAt: p.Timestamp,
	})
	if err != nil {
		return domain.Trade{}, fmt.Errorf("close position %d: %w", pos.ID, err)
	}

	e.state.Balances.VenueA += legA.Notional() - legA.Commission
	e.state.Balances.VenueB += closed.MarginB + closed.Size*(closed.EntryPriceB-legB.Price) - legB.Commission

	return domain.Trade{
		Timestamp:   p.Timestamp,
		Action:      domain.ActionExit,
		PositionID:  pos.ID,
		Amount:      pos.Size,
		Premium:     premium,
		Level:       level,
		FXRate:      p.FXRate,
		LegA:        legA,
		LegB:        legB,
		Commission:  legA.Commission + legB.Commission*p.FXRate,
		Slippage:    legA.Slippage + legB.Slippage*p.FXRate,
		RealizedPnL: closed.RealizedPnL,
		Forced:      kind == exitForced,
		StopLoss:    kind == exitStopLoss,
	}, nil
}

// resetIfFlat starts a new cycle once the last position of a cycle is gone.
func (e *ScaledStrategyEngine) resetIfFlat(p domain.PricePoint) bool {
	ladder := e.state.Ladder
	if e.state.Ledger.OpenCount() != 0 {
		return false
	}
	if ladder.UsedCount(domain.LevelEntry) == 0 && ladder.UsedCount(domain.LevelExit) == 0 {
		return false
	}
	ladder.Reset()
	e.state.CycleCapital = e.state.Balances
	e.state.Cycles++
	e.logger.Info("Ladder reset",
		zap.Time("at", p.Timestamp),
		zap.Int("cycle", e.state.Cycles),
		zap.Float64("balance_a", e.state.Balances.VenueA),
		zap.Float64("balance_b", e.state.Balances.VenueB))
	return true
}

func (e *ScaledStrategyEngine) miss(p domain.PricePoint, level domain.Level, premium float64, reason string, out *TickOutcome) {
	out.Missed = append(out.Missed, domain.MissedEntry{
		Timestamp: p.Timestamp,
		Level:     level.Threshold,
		Premium:   premium,
		Reason:    reason,
	})
	e.logger.Debug("Missed entry",
		zap.Time("at", p.Timestamp),
		zap.Float64("level", level.Threshold),
		zap.Float64("premium", premium),
		zap.String("reason", reason))
}

// exceeds tolerates float noise when a budget is spent exactly.
func exceeds(required, available float64) bool {
	return required > available+math.Abs(available)*1e-9
}
