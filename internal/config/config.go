package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/infrastructure/pricefeed"
	"github.com/vitos/premium_backtest/internal/usecase"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of the backtest tools.
type Config struct {
	Backtest BacktestSection `yaml:"backtest"`
	Data     DataConfig      `yaml:"data"`
	Storage  StorageConfig   `yaml:"storage"`
	Logging  LogConfig       `yaml:"logging"`
	Sweep    SweepConfig     `yaml:"sweep"`
	Server   ServerConfig    `yaml:"server"`
}

// BacktestSection mirrors domain.BacktestConfig with dates as strings.
type BacktestSection struct {
	EntryLevels         []float64 `yaml:"entry_levels"`
	ExitLevels          []float64 `yaml:"exit_levels"`
	PositionPortion     float64   `yaml:"position_portion"`
	MaxOpenPositions    *int      `yaml:"max_open_positions"`  // absent = one slot per entry level
	LeverageMultiplier  *float64  `yaml:"leverage_multiplier"` // absent = 1
	CommissionRateA     float64   `yaml:"commission_rate_a"`
	CommissionRateB     float64   `yaml:"commission_rate_b"`
	SlippageRate        float64   `yaml:"slippage_rate"`
	InitialBalanceA     float64   `yaml:"initial_balance_a"`
	InitialBalanceB     float64   `yaml:"initial_balance_b"`
	StartDate           string    `yaml:"start_date"` // 2006-01-02 or RFC3339
	EndDate             string    `yaml:"end_date"`   // a bare date includes the whole day
	MaxPositionSize     float64   `yaml:"max_position_size"`
	MinOrderSize        float64   `yaml:"min_order_size"`
	AnnualizationFactor float64   `yaml:"annualization_factor"`
	StopLossPct         float64   `yaml:"stop_loss_pct"`
}

// DataConfig selects the price history.
type DataConfig struct {
	PricesCSV string          `yaml:"prices_csv"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig describes a piecewise linear premium path through
// Waypoints, StepsPerLeg ticks per segment.
type SyntheticConfig struct {
	Start       string    `yaml:"start"`
	StepMinutes int       `yaml:"step_minutes"`
	VenueBPrice float64   `yaml:"venue_b_price"`
	FXRate      float64   `yaml:"fx_rate"`
	Waypoints   []float64 `yaml:"waypoints"`
	StepsPerLeg int       `yaml:"steps_per_leg"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path or ":memory:"
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
	File   string `yaml:"file"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type SweepConfig struct {
	Workers int               `yaml:"workers"`
	Top     int               `yaml:"top"`
	Grid    usecase.SweepGrid `yaml:"grid"`
}

// Load reads the YAML file at path, then the .env file if one exists.
// Environment values win over the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default is a ready-to-run configuration on a synthetic premium cycle.
func Default() *Config {
	cfg := &Config{
		Backtest: BacktestSection{
			EntryLevels:        []float64{-2, -3, -4},
			ExitLevels:         []float64{0.5, 1.0, 1.5},
			PositionPortion: 0.2,
			CommissionRateA: 0.0025,
			CommissionRateB: 0.001,
			SlippageRate:    0.001,
			InitialBalanceA: 100_000_000,
			InitialBalanceB: 100_000,
		},
		Data: DataConfig{
			Synthetic: SyntheticConfig{
				VenueBPrice: 50_000,
				FXRate:      1_300,
				Waypoints:   []float64{0, -4.5, 2, -3, 1.5},
			},
		},
	}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKTEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BACKTEST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BACKTEST_DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BACKTEST_PRICES_CSV"); v != "" {
		cfg.Data.PricesCSV = v
	}
}

func setDefaults(cfg *Config) {
	s := &cfg.Data.Synthetic
	if s.StepMinutes <= 0 {
		s.StepMinutes = 60
	}
	if s.StepsPerLeg <= 0 {
		s.StepsPerLeg = 10
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "backtest.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Sweep.Workers <= 0 {
		cfg.Sweep.Workers = runtime.NumCPU()
	}
	if cfg.Sweep.Top <= 0 {
		cfg.Sweep.Top = 10
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
}

// BacktestConfig converts the backtest section into a validated domain config.
// Only absent keys get defaults; explicit values go through validation as is.
func (c *Config) BacktestConfig() (domain.BacktestConfig, error) {
	b := c.Backtest
	maxOpen := len(b.EntryLevels)
	if b.MaxOpenPositions != nil {
		maxOpen = *b.MaxOpenPositions
	}
	leverage := 1.0
	if b.LeverageMultiplier != nil {
		leverage = *b.LeverageMultiplier
	}
	start, err := parseDate(b.StartDate, false)
	if err != nil {
		return domain.BacktestConfig{}, fmt.Errorf("%w: start_date: %v", domain.ErrInvalidConfig, err)
	}
	end, err := parseDate(b.EndDate, true)
	if err != nil {
		return domain.BacktestConfig{}, fmt.Errorf("%w: end_date: %v", domain.ErrInvalidConfig, err)
	}

	return domain.NewBacktestConfig(domain.BacktestConfig{
		EntryLevels:         b.EntryLevels,
		ExitLevels:          b.ExitLevels,
		PositionPortion:     b.PositionPortion,
		MaxOpenPositions:    maxOpen,
		LeverageMultiplier:  leverage,
		CommissionRateA:     b.CommissionRateA,
		CommissionRateB:     b.CommissionRateB,
		SlippageRate:        b.SlippageRate,
		InitialBalanceA:     b.InitialBalanceA,
		InitialBalanceB:     b.InitialBalanceB,
		DateRange:           domain.DateRange{Start: start, End: end},
		MaxPositionSize:     b.MaxPositionSize,
		MinOrderSize:        b.MinOrderSize,
		AnnualizationFactor: b.AnnualizationFactor,
		StopLossPct:         b.StopLossPct,
	})
}

// SyntheticPoints builds the configured synthetic price series.
func (c *Config) SyntheticPoints() ([]domain.PricePoint, error) {
	s := c.Data.Synthetic
	if len(s.Waypoints) < 2 {
		return nil, fmt.Errorf("%w: synthetic.waypoints needs at least two values", domain.ErrInvalidConfig)
	}
	if !(s.VenueBPrice > 0) || !(s.FXRate > 0) {
		return nil, fmt.Errorf("%w: synthetic venue_b_price and fx_rate must be > 0", domain.ErrInvalidConfig)
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if s.Start != "" {
		t, err := pricefeed.ParseTime(s.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: synthetic.start: %v", domain.ErrInvalidConfig, err)
		}
		start = t
	}

	premiums := []float64{s.Waypoints[0]}
	for i := 1; i < len(s.Waypoints); i++ {
		leg := pricefeed.LinearPath(s.Waypoints[i-1], s.Waypoints[i], s.StepsPerLeg+1)
		premiums = append(premiums, leg[1:]...)
	}
	step := time.Duration(s.StepMinutes) * time.Minute
	return pricefeed.FromPremiums(start, step, s.VenueBPrice, s.FXRate, premiums), nil
}

func parseDate(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// PriceSource returns the CSV file source when one is configured, otherwise
// the synthetic series. forceSynthetic ignores any CSV path.
func (c *Config) PriceSource(forceSynthetic bool) (domain.PriceSource, error) {
	if c.Data.PricesCSV != "" && !forceSynthetic {
		return pricefeed.NewCSVSource(c.Data.PricesCSV), nil
	}
	points, err := c.SyntheticPoints()
	if err != nil {
		return nil, err
	}
	return &pricefeed.SeriesSource{Points: points}, nil
}
