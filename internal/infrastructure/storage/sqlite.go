package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/premium_backtest/internal/domain"
	"gopkg.in/yaml.v3"
)

// SQLiteStore persists finished backtest runs. It implements
// domain.ResultRepository.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			initial_value REAL NOT NULL,
			final_value REAL NOT NULL,
			total_return_pct REAL NOT NULL,
			max_drawdown_pct REAL NOT NULL,
			win_rate REAL NOT NULL,
			profit_factor REAL,
			sharpe_ratio REAL NOT NULL,
			entry_count INTEGER NOT NULL,
			exit_count INTEGER NOT NULL,
			missed_entries INTEGER NOT NULL,
			data_gaps INTEGER NOT NULL,
			config_yaml TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			action TEXT NOT NULL,
			position_id INTEGER NOT NULL,
			amount REAL NOT NULL,
			premium REAL NOT NULL,
			level REAL NOT NULL,
			fx_rate REAL NOT NULL,
			intended_a REAL NOT NULL,
			price_a REAL NOT NULL,
			commission_a REAL NOT NULL,
			slippage_a REAL NOT NULL,
			intended_b REAL NOT NULL,
			price_b REAL NOT NULL,
			commission_b REAL NOT NULL,
			slippage_b REAL NOT NULL,
			commission REAL NOT NULL,
			slippage REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			forced BOOLEAN NOT NULL DEFAULT 0,
			stop_loss BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq);`,
		`CREATE TABLE IF NOT EXISTS equity_points (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS missed_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts DATETIME NOT NULL,
			level REAL NOT NULL,
			premium REAL NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_missed_run ON missed_entries(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Databases created before stop losses existed; fails harmlessly otherwise.
	_, _ = s.db.Exec(`ALTER TABLE trades ADD COLUMN stop_loss BOOLEAN NOT NULL DEFAULT 0`)
	return nil
}

// SaveResult stores the run header, trades, equity curve and missed entries
// in one transaction and returns the generated run id.
func (s *SQLiteStore) SaveResult(ctx context.Context, name string, cfg domain.BacktestConfig, result *domain.BacktestResult) (string, error) {
	if result == nil {
		return "", errors.New("nil backtest result")
	}
	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	m := result.Metrics
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id, name, created_at, started_at, ended_at, initial_value, final_value,
			total_return_pct, max_drawdown_pct, win_rate, profit_factor, sharpe_ratio,
			entry_count, exit_count, missed_entries, data_gaps, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, time.Now().UTC(), result.StartedAt.UTC(), result.EndedAt.UTC(),
		result.InitialValue, result.FinalValue,
		m.TotalReturnPct, m.MaxDrawdownPct, m.WinRate, encodeFactor(m.ProfitFactor), m.SharpeRatio,
		result.EntryCount(), result.ExitCount(), len(result.MissedEntries), len(result.DataGaps), string(snapshot))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (run_id, seq, ts, action, position_id, amount, premium, level, fx_rate,
			intended_a, price_a, commission_a, slippage_a, intended_b, price_b, commission_b, slippage_b,
			commission, slippage, realized_pnl, forced, stop_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer tradeStmt.Close()
	for i, t := range result.Trades {
		_, err := tradeStmt.ExecContext(ctx, id, i, t.Timestamp.UTC(), string(t.Action), t.PositionID,
			t.Amount, t.Premium, t.Level, t.FXRate,
			t.LegA.IntendedPrice, t.LegA.Price, t.LegA.Commission, t.LegA.Slippage,
			t.LegB.IntendedPrice, t.LegB.Price, t.LegB.Commission, t.LegB.Slippage,
			t.Commission, t.Slippage, t.RealizedPnL, t.Forced, t.StopLoss)
		if err != nil {
			return "", fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `INSERT INTO equity_points (run_id, seq, ts, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer equityStmt.Close()
	for i, p := range result.EquityCurve {
		if _, err := equityStmt.ExecContext(ctx, id, i, p.Timestamp.UTC(), p.Value); err != nil {
			return "", fmt.Errorf("insert equity point %d: %w", i, err)
		}
	}

	missedStmt, err := tx.PrepareContext(ctx, `INSERT INTO missed_entries (run_id, ts, level, premium, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer missedStmt.Close()
	for _, me := range result.MissedEntries {
		if _, err := missedStmt.ExecContext(ctx, id, me.Timestamp.UTC(), me.Level, me.Premium, me.Reason); err != nil {
			return "", fmt.Errorf("insert missed entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

const runColumns = `id, name, created_at, started_at, ended_at, initial_value, final_value,
	total_return_pct, max_drawdown_pct, win_rate, profit_factor, sharpe_ratio,
	entry_count, exit_count, missed_entries, data_gaps, config_yaml`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunSummary, error) {
	var (
		r  domain.RunSummary
		pf sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.StartedAt, &r.EndedAt, &r.InitialValue, &r.FinalValue,
		&r.TotalReturnPct, &r.MaxDrawdownPct, &r.WinRate, &pf, &r.SharpeRatio,
		&r.EntryCount, &r.ExitCount, &r.MissedEntries, &r.DataGaps, &r.ConfigYAML)
	if err != nil {
		return nil, err
	}
	r.ProfitFactor = decodeFactor(pf)
	return &r, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns the newest runs first. A non-positive limit returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ListTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, action, position_id, amount, premium, level, fx_rate,
			intended_a, price_a, commission_a, slippage_a, intended_b, price_b, commission_b, slippage_b,
			commission, slippage, realized_pnl, forced, stop_loss
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t      domain.Trade
			action string
		)
		if err := rows.Scan(&t.Timestamp, &action, &t.PositionID, &t.Amount, &t.Premium, &t.Level, &t.FXRate,
			&t.LegA.IntendedPrice, &t.LegA.Price, &t.LegA.Commission, &t.LegA.Slippage,
			&t.LegB.IntendedPrice, &t.LegB.Price, &t.LegB.Commission, &t.LegB.Slippage,
			&t.Commission, &t.Slippage, &t.RealizedPnL, &t.Forced, &t.StopLoss); err != nil {
			return nil, err
		}
		t.Action = domain.TradeAction(action)
		restoreLegs(&t)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// restoreLegs fills in what the schema derives from the action: entries buy
// on venue A and short on venue B, exits do the opposite.
func restoreLegs(t *domain.Trade) {
	t.LegA.Venue, t.LegB.Venue = domain.VenueA, domain.VenueB
	t.LegA.Amount, t.LegB.Amount = t.Amount, t.Amount
	if t.Action == domain.ActionEntry {
		t.LegA.Side, t.LegB.Side = domain.SideBuy, domain.SideSell
	} else {
		t.LegA.Side, t.LegB.Side = domain.SideSell, domain.SideBuy
	}
}

func (s *SQLiteStore) ListEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, value FROM equity_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) ListMissedEntries(ctx context.Context, runID string) ([]domain.MissedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, level, premium, reason FROM missed_entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missed []domain.MissedEntry
	for rows.Next() {
		var me domain.MissedEntry
		if err := rows.Scan(&me.Timestamp, &me.Level, &me.Premium, &me.Reason); err != nil {
			return nil, err
		}
		missed = append(missed, me)
	}
	return missed, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	for _, table := range []string{"trades", "equity_points", "missed_entries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// An unbounded profit factor is stored as NULL.
func encodeFactor(v float64) sql.NullFloat64 {
	if math.IsInf(v, 1) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func decodeFactor(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}
