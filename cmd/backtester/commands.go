package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"mabacktester/internal/archive"
	"mabacktester/internal/config"
	"mabacktester/internal/engine"
	"mabacktester/internal/marketdata"
	"mabacktester/internal/render"
	"mabacktester/internal/repository"
	"mabacktester/internal/server"
	"mabacktester/types"
)

var errNoSymbols = errors.New("at least one symbol is required")

var (
	initialFlag = &cli.Float64Flag{
		Name:  "initial",
		Usage: "initial investment; defaults to backtest.initial_investment",
	}
	shortFlag = &cli.IntFlag{
		Name:  "short",
		Usage: "short moving average window in days; defaults to backtest.short_window",
	}
	longFlag = &cli.IntFlag{
		Name:  "long",
		Usage: "long moving average window in days; defaults to backtest.long_window",
	}
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "start the HTTP API",
	Action: serve,
}

var fetchCommand = &cli.Command{
	Name:      "fetch",
	Usage:     "download daily prices from Alpha Vantage and replace the stored rows",
	ArgsUsage: "<symbol> [symbol...]",
	Action:    fetch,
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "backtest stored prices, one run per symbol",
	ArgsUsage: "<symbol> [symbol...]",
	Flags: []cli.Flag{
		initialFlag,
		shortFlag,
		longFlag,
		&cli.StringFlag{
			Name:  "csv",
			Usage: "directory for <symbol>_values.csv and <symbol>_trades.csv",
		},
	},
	Action: run,
}

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "write the PDF backtest report of a symbol",
	ArgsUsage: "<symbol>",
	Flags: []cli.Flag{
		initialFlag,
		shortFlag,
		longFlag,
		&cli.StringFlag{
			Name:  "out",
			Usage: "output file; defaults to <SYMBOL>_backtest_report.pdf",
		},
	},
	Action: report,
}

var historyCommand = &cli.Command{
	Name:      "history",
	Usage:     "list archived runs of a symbol",
	ArgsUsage: "<symbol>",
	Action:    history,
}

// app bundles the collaborators a command needs. Close releases the database.
type app struct {
	cfg config.Config
	db  *repository.Database
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	db, err := repository.NewDatabase(c.Context, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	log.Printf("db: opened %s at %s", cfg.Database.Driver, redactDSN(cfg.Database.DSN))
	return &app{cfg: cfg, db: db}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func (a *app) fetcher() *marketdata.Client {
	av := a.cfg.AlphaVantage
	return marketdata.NewClient(marketdata.Options{
		BaseURL:    av.BaseURL,
		Function:   av.Function,
		APIKey:     av.APIKey,
		OutputSize: av.OutputSize,
	}, nil)
}

func (a *app) archive(ctx context.Context) (*archive.Service, error) {
	if a.cfg.Archive.DynamoDBTable == "" {
		return nil, nil
	}
	return archive.NewService(ctx, a.cfg.Archive.Region, a.cfg.Archive.DynamoDBTable)
}

// engine builds an Engine from the configured defaults and the command line overrides.
func (a *app) engine(c *cli.Context, csvDir string) (*engine.Engine, error) {
	eng := engine.NewEngine(a.db, engineConfig(c, a.cfg.EngineConfig()), a.cfg.ReportingConfig(csvDir)).
		WithWorkers(a.cfg.Backtest.Workers)
	svc, err := a.archive(c.Context)
	if err != nil {
		return nil, err
	}
	if svc != nil {
		eng.WithArchive(svc)
		log.Printf("archive: storing reports in dynamodb table %s", a.cfg.Archive.DynamoDBTable)
	}
	return eng, nil
}

// engineConfig applies the command line overrides to the configured defaults.
func engineConfig(c *cli.Context, base engine.Config) engine.Config {
	if c.IsSet(initialFlag.Name) {
		base = base.WithInitialInvestment(c.Float64(initialFlag.Name))
	}
	if c.IsSet(shortFlag.Name) {
		base.ShortWindow = c.Int(shortFlag.Name)
	}
	if c.IsSet(longFlag.Name) {
		base.LongWindow = c.Int(longFlag.Name)
	}
	return base
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.engine(c, "")
	if err != nil {
		return err
	}
	srv := server.New(a.db, a.fetcher(), eng, a.cfg.Backtest.HistoryDays)
	return server.ListenAndServe(c.Context, a.cfg.Server.Addr, srv.Router())
}

func fetch(c *cli.Context) error {
	symbols := c.Args().Slice()
	if len(symbols) == 0 {
		return errNoSymbols
	}
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	client := a.fetcher()
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		candles, err := client.DailyCandles(c.Context, symbol)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", symbol, err)
		}
		candles = repository.TrimHistory(candles, time.Now(), a.cfg.Backtest.HistoryDays)
		if err := a.db.ReplacePrices(c.Context, symbol, candles); err != nil {
			return fmt.Errorf("store %s: %w", symbol, err)
		}
		log.Printf("fetch: stored %d rows for %s", len(candles), symbol)
	}
	return nil
}

func run(c *cli.Context) error {
	symbols := c.Args().Slice()
	if len(symbols) == 0 {
		return errNoSymbols
	}
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.engine(c, c.String("csv"))
	if err != nil {
		return err
	}

	if len(symbols) == 1 {
		res, err := eng.Run(c.Context, symbols[0])
		if err != nil {
			return err
		}
		engine.PrintReport(os.Stdout, res.Report, res.Summary)
		return nil
	}

	results, runErr := eng.WithProgress(os.Stderr).RunAll(c.Context, symbols)
	fmt.Println()
	engine.PrintResultsTable(os.Stdout, results)
	return runErr
}

func report(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("report takes exactly one symbol")
	}
	symbol := strings.ToUpper(c.Args().First())
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.engine(c, "")
	if err != nil {
		return err
	}
	res, err := eng.Run(c.Context, symbol)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = render.ReportFilename(symbol)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render.WritePDF(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("report: wrote %s", out)
	return nil
}

func history(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("history takes exactly one symbol")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Archive.DynamoDBTable == "" {
		return errors.New("archive.dynamodb_table is not configured")
	}
	svc, err := archive.NewService(c.Context, cfg.Archive.Region, cfg.Archive.DynamoDBTable)
	if err != nil {
		return err
	}
	records, err := svc.List(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run", "Created", "Period", "Initial", "Total Return", "Max Drawdown", "Trades")
	for _, r := range records {
		table.Append(
			r.RunID.String(),
			r.CreatedAt.Format(time.RFC3339),
			r.Start.Format(types.DateLayout)+" - "+r.End.Format(types.DateLayout),
			fmt.Sprintf("%.2f", r.InitialInvestment),
			fmt.Sprintf("%.2f%%", r.TotalReturn),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%d", r.TotalTrades),
		)
	}
	table.Render()
	return nil
}

// redactDSN drops credentials from a postgres URL before it is logged.
func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
