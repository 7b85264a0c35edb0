package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"mabacktester/types"
)

// Dates are stored as TEXT so the driver does not coerce them into timestamps, and
// decimals as TEXT to keep them exact.
const sqliteSchema = `CREATE TABLE IF NOT EXISTS prices(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume INTEGER NOT NULL,
	UNIQUE(symbol, date)
)`

const (
	sqliteDeletePrices = `DELETE FROM prices WHERE symbol = ?`
	sqliteInsertPrice  = `INSERT INTO prices(symbol,date,open,high,low,close,volume) VALUES(?,?,?,?,?,?,?)`
	sqliteSelectPrices = `SELECT symbol,date,open,high,low,close,volume FROM prices WHERE symbol = ? ORDER BY date`
)

func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps in-memory databases alive and serialises writers
	db.SetMaxOpenConns(1)
	return db, nil
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, sqliteSchema)
	return err
}

type sqlitePrices struct {
	db *sql.DB
}

func (s *sqlitePrices) ReplacePrices(ctx context.Context, symbol string, rows []priceRow) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, sqliteDeletePrices, symbol); err != nil {
		return fmt.Errorf("delete %s: %w", symbol, err)
	}
	stmt, err := tx.PrepareContext(ctx, sqliteInsertPrice)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		_, err = stmt.ExecContext(ctx, r.Symbol, r.Date.Format(types.DateLayout),
			r.Open.String(), r.High.String(), r.Low.String(), r.Close.String(), r.Volume)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", symbol, r.Date.Format(types.DateLayout), err)
		}
	}
	return tx.Commit()
}

func (s *sqlitePrices) GetPrices(ctx context.Context, symbol string) ([]priceRow, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectPrices, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []priceRow
	for rows.Next() {
		var (
			r    priceRow
			date string
		)
		if err := rows.Scan(&r.Symbol, &date, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, err
		}
		if r.Date, err = time.Parse(types.DateLayout, date); err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
