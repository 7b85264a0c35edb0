package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS prices (
	id     BIGSERIAL PRIMARY KEY,
	symbol TEXT    NOT NULL,
	date   DATE    NOT NULL,
	open   NUMERIC NOT NULL,
	high   NUMERIC NOT NULL,
	low    NUMERIC NOT NULL,
	close  NUMERIC NOT NULL,
	volume BIGINT  NOT NULL,
	UNIQUE (symbol, date)
)`

const (
	pgDeletePrices = `DELETE FROM prices WHERE symbol = $1`
	pgInsertPrice  = `INSERT INTO prices (symbol, date, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	pgSelectPrices = `SELECT symbol, date, open, high, low, close, volume
FROM prices WHERE symbol = $1 ORDER BY date`
)

type postgresPrices struct {
	pool *pgxpool.Pool
}

func (p *postgresPrices) ReplacePrices(ctx context.Context, symbol string, rows []priceRow) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgDeletePrices, symbol); err != nil {
			return fmt.Errorf("delete %s: %w", symbol, err)
		}
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(pgInsertPrice, r.Symbol, r.Date, r.Open, r.High, r.Low, r.Close, r.Volume)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *postgresPrices) GetPrices(ctx context.Context, symbol string) ([]priceRow, error) {
	rows, err := p.pool.Query(ctx, pgSelectPrices, symbol)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[priceRow])
}
