package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"mabacktester/types"
)

var (
	ErrNoData               = errors.New("no data available for the specified instrument")
	ErrInvalidConfiguration = errors.New("invalid backtest configuration")
	ErrInvalidPrice         = errors.New("close price must be positive and finite")
	ErrUnorderedSeries      = errors.New("price series is not in ascending date order")
)

// Backtester runs the moving average crossover strategy over a daily close series.
// A Backtester is not safe for concurrent use; create one per run.
type Backtester struct {
	cfg      Config
	averages *movingAverages
}

// NewBacktester validates cfg before any simulation work is done.
func NewBacktester(cfg Config) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backtester{
		cfg:      cfg,
		averages: newMovingAverages(cfg.ShortWindow, cfg.LongWindow),
	}, nil
}

// Run simulates the whole series in one forward pass. The series is not modified.
func (b *Backtester) Run(series []types.PriceSample) (*Report, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}

	b.averages.reset()
	sim := newSimulation(series, b.averages, b.cfg.InitialInvestment)
	for i := range series {
		if err := sim.step(i); err != nil {
			return nil, err
		}
	}
	return sim.report(b.cfg.InitialInvestment), nil
}

// simulation is the mutable state of a single run.
type simulation struct {
	series    []types.PriceSample
	closes    []float64
	averages  *movingAverages
	portfolio *portfolio
	drawdown  drawdownTracker
	values    []float64
}

func newSimulation(series []types.PriceSample, averages *movingAverages, initialCash float64) *simulation {
	return &simulation{
		series:    series,
		closes:    types.Closes(series),
		averages:  averages,
		portfolio: newPortfolio(initialCash),
		values:    make([]float64, 0, len(series)),
	}
}

func (s *simulation) step(i int) error {
	sample := s.series[i]
	if err := checkSample(s.series, i); err != nil {
		return err
	}

	shortMA, longMA := s.averages.advance(s.closes, i)
	if side, ok := crossoverSignal(sample.Close, shortMA, longMA, s.portfolio); ok {
		s.portfolio.apply(side, sample.Date, sample.Close)
	}

	value := s.portfolio.value(sample.Close)
	s.values = append(s.values, value)
	s.drawdown.update(value)
	return nil
}

func (s *simulation) report(initialCash float64) *Report {
	final := s.values[len(s.values)-1]
	dates := make([]time.Time, len(s.series))
	for i, sample := range s.series {
		dates[i] = sample.Date
	}
	return &Report{
		RunID:             uuid.New(),
		Start:             s.series[0].Date,
		End:               s.series[len(s.series)-1].Date,
		InitialInvestment: initialCash,
		FinalValue:        final,
		TotalReturn:       (final - initialCash) / initialCash * 100,
		MaxDrawdown:       s.drawdown.maxDrawdown,
		TotalTrades:       s.portfolio.totalTrades(),
		PortfolioValues:   s.values,
		Dates:             dates,
		Trades:            s.portfolio.trades,
	}
}

// checkSample rejects prices that would turn the buy division into Inf or NaN, and
// samples that break the ascending date order.
func checkSample(series []types.PriceSample, i int) error {
	sample := series[i]
	if sample.Close <= 0 || math.IsNaN(sample.Close) || math.IsInf(sample.Close, 0) {
		return fmt.Errorf("index %d (%s) close %v: %w", i, sample.Date.Format(types.DateLayout), sample.Close, ErrInvalidPrice)
	}
	if i > 0 && !sample.Date.After(series[i-1].Date) {
		return fmt.Errorf("index %d (%s) after %s: %w", i,
			sample.Date.Format(types.DateLayout), series[i-1].Date.Format(types.DateLayout), ErrUnorderedSeries)
	}
	return nil
}
