package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"mabacktester/types"
)

const defaultWorkers = 4

// Result bundles a finished run with the series it was computed from.
type Result struct {
	Report  *Report
	Summary Summary
	Series  []types.PriceSample
}

// Engine loads price series from the data store and runs backtests over them.
type Engine struct {
	db              dataStore
	config          Config
	reportingConfig ReportingConfig
	archive         reportArchive
	workers         int
	progress        io.Writer
}

func NewEngine(db dataStore, cfg Config, reportingConfig ReportingConfig) *Engine {
	return &Engine{
		db:              db,
		config:          cfg,
		reportingConfig: reportingConfig,
		workers:         defaultWorkers,
		progress:        io.Discard,
	}
}

// WithArchive stores every finished report in a.
func (e *Engine) WithArchive(a reportArchive) *Engine {
	e.archive = a
	return e
}

// WithWorkers bounds the number of concurrent runs in RunAll.
func (e *Engine) WithWorkers(n int) *Engine {
	if n > 0 {
		e.workers = n
	}
	return e
}

// WithProgress renders a progress bar for RunAll on w.
func (e *Engine) WithProgress(w io.Writer) *Engine {
	if w != nil {
		e.progress = w
	}
	return e
}

func (e *Engine) Config() Config {
	return e.config
}

// Run backtests symbol with the engine configuration.
func (e *Engine) Run(ctx context.Context, symbol string) (*Result, error) {
	return e.RunWith(ctx, symbol, e.config)
}

// RunWith backtests symbol with cfg. The configuration is validated before any data
// is loaded.
func (e *Engine) RunWith(ctx context.Context, symbol string, cfg Config) (*Result, error) {
	bt, err := NewBacktester(cfg)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	series, err := e.db.GetSeries(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}

	report, err := bt.Run(series)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}
	report.Symbol = symbol

	res := &Result{
		Report:  report,
		Summary: Summarize(report, e.reportingConfig.RiskFreeRate),
		Series:  series,
	}

	if e.reportingConfig.CSVDir != "" {
		if err := writeCSVFiles(e.reportingConfig.CSVDir, res); err != nil {
			return nil, err
		}
	}
	if e.archive != nil {
		if err := e.archive.Save(ctx, report); err != nil {
			log.Printf("archive: saving %s run %s: %v", symbol, report.RunID, err)
		}
	}
	return res, nil
}

// RunAll backtests each symbol independently, one run per worker. Results keep the
// order of symbols; a failed symbol leaves a nil entry and its error is joined into
// the returned error. Cancellation is only observed between runs.
func (e *Engine) RunAll(ctx context.Context, symbols []string) ([]*Result, error) {
	results := make([]*Result, len(symbols))
	errs := make([]error, len(symbols))
	bar := initProgressBar(len(symbols), e.progress)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Run(ctx, symbol)
			if err != nil {
				errs[i] = err
			} else {
				results[i] = res
			}
			_ = bar.Add(1)
			return nil
		})
	}
	err := g.Wait()
	_ = bar.Finish()
	if err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

func initProgressBar(maxTicks int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
