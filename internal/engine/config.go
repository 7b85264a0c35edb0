package engine

import (
	"fmt"
	"math"
)

const (
	DefaultShortWindow       = 50
	DefaultLongWindow        = 200
	DefaultInitialInvestment = 1000
)

// Config holds the tunable parameters of a single crossover backtest.
type Config struct {
	ShortWindow       int
	LongWindow        int
	InitialInvestment float64
}

// DefaultConfig returns the 50/200 day setup with a 1000 initial investment.
func DefaultConfig() Config {
	return Config{
		ShortWindow:       DefaultShortWindow,
		LongWindow:        DefaultLongWindow,
		InitialInvestment: DefaultInitialInvestment,
	}
}

// NewConfig builds a Config; it is validated when a Backtester is created from it.
func NewConfig(shortWindow, longWindow int, initialInvestment float64) Config {
	return Config{
		ShortWindow:       shortWindow,
		LongWindow:        longWindow,
		InitialInvestment: initialInvestment,
	}
}

// WithInitialInvestment returns a copy of c using a different starting cash amount.
func (c Config) WithInitialInvestment(initial float64) Config {
	c.InitialInvestment = initial
	return c
}

func (c Config) Validate() error {
	if c.ShortWindow <= 0 {
		return fmt.Errorf("short window %d: %w", c.ShortWindow, ErrInvalidConfiguration)
	}
	if c.LongWindow <= 0 {
		return fmt.Errorf("long window %d: %w", c.LongWindow, ErrInvalidConfiguration)
	}
	if c.InitialInvestment <= 0 || math.IsNaN(c.InitialInvestment) || math.IsInf(c.InitialInvestment, 0) {
		return fmt.Errorf("initial investment %v: %w", c.InitialInvestment, ErrInvalidConfiguration)
	}
	return nil
}

// ReportingConfig controls the optional outputs of a run.
type ReportingConfig struct {
	// RiskFreeRate is the annual rate used for the Sharpe ratio.
	RiskFreeRate float64
	// CSVDir receives <symbol>_values.csv and <symbol>_trades.csv when set.
	CSVDir string
}

func NewReportingConfig(riskFreeRate float64, csvDir string) ReportingConfig {
	return ReportingConfig{
		RiskFreeRate: riskFreeRate,
		CSVDir:       csvDir,
	}
}
