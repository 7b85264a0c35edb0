package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Global error declarations.
var (
	ErrNoPrices          = errors.New("no prices found in datasource")
	ErrDriverUnsupported = errors.New("database driver not supported")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// priceRow is the storage shape of a candle. The symbol is kept in upper case.
type priceRow struct {
	Symbol string          `db:"symbol"`
	Date   time.Time       `db:"date"`
	Open   decimal.Decimal `db:"open"`
	High   decimal.Decimal `db:"high"`
	Low    decimal.Decimal `db:"low"`
	Close  decimal.Decimal `db:"close"`
	Volume int64           `db:"volume"`
}

type pricesRepository interface {
	ReplacePrices(ctx context.Context, symbol string, rows []priceRow) error
	GetPrices(ctx context.Context, symbol string) ([]priceRow, error)
}

// Database struct that holds the database connection and queries.
type Database struct {
	prices pricesRepository
	close  func()
}

// NewDatabase opens the store selected by driver, creates the schema if needed and
// verifies connectivity.
func NewDatabase(ctx context.Context, driver, dsn string) (*Database, error) {
	switch driver {
	case DriverPostgres:
		return newPostgres(ctx, dsn)
	case DriverSQLite:
		return newSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrDriverUnsupported)
	}
}

func newPostgres(ctx context.Context, dsn string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Database{
		prices: &postgresPrices{pool: pool},
		close:  pool.Close,
	}, nil
}

func newSQLite(ctx context.Context, dsn string) (*Database, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Database{
		prices: &sqlitePrices{db: db},
		close:  func() { _ = db.Close() },
	}, nil
}

// Close releases the underlying connections.
func (db *Database) Close() {
	if db.close != nil {
		db.close()
	}
}
