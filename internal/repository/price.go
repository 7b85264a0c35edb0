package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"mabacktester/types"
)

// ReplacePrices swaps every stored row of symbol for candles in a single transaction.
// Other symbols are untouched.
func (db *Database) ReplacePrices(ctx context.Context, symbol string, candles []types.Candle) error {
	symbol = strings.ToUpper(symbol)
	rows := make([]priceRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, priceRow{
			Symbol: symbol,
			Date:   c.Date,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return db.prices.ReplacePrices(ctx, symbol, rows)
}

// GetPrices returns the stored candles of symbol in ascending date order.
func (db *Database) GetPrices(ctx context.Context, symbol string) ([]types.Candle, error) {
	rows, err := db.prices.GetPrices(ctx, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPrices
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoPrices
	}
	return convertPrices(rows), nil
}

// GetSeries returns the close series of symbol for the engine.
func (db *Database) GetSeries(ctx context.Context, symbol string) ([]types.PriceSample, error) {
	candles, err := db.GetPrices(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return types.SamplesFromCandles(candles), nil
}

// TrimHistory drops candles dated before now minus days. The cutoff keeps the time of
// day of now, so a candle dated exactly days ago only survives at midnight. The input
// order is kept.
func TrimHistory(candles []types.Candle, now time.Time, days int) []types.Candle {
	if days <= 0 {
		return candles
	}
	cutoff := now.AddDate(0, 0, -days)
	out := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if !c.Date.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

func convertPrices(rows []priceRow) []types.Candle {
	candles := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, types.Candle{
			Ticker: r.Symbol,
			Date:   r.Date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return candles
}
