package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mabacktester/types"
)

var startTime = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

type mockPricesRepository struct {
	sqlError error
	stored   map[string][]priceRow
}

func (m *mockPricesRepository) ReplacePrices(_ context.Context, symbol string, rows []priceRow) error {
	if m.sqlError != nil {
		return m.sqlError
	}
	if m.stored == nil {
		m.stored = map[string][]priceRow{}
	}
	m.stored[symbol] = rows
	return nil
}

func (m *mockPricesRepository) GetPrices(_ context.Context, symbol string) ([]priceRow, error) {
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	return m.stored[symbol], nil
}

func mockCandles(ticker string, start time.Time, n int) []types.Candle {
	var candles []types.Candle
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(100 + i))
		candles = append(candles, types.Candle{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price.Add(decimal.NewFromInt(1)),
			Low:    price.Sub(decimal.NewFromInt(1)),
			Close:  price.Add(decimal.RequireFromString("0.25")),
			Volume: int64(1000 * (i + 1)),
		})
	}
	return candles
}

func TestDatabase_GetPrices(t *testing.T) {
	tests := []struct {
		name    string
		stored  int
		sqlErr  error
		wantErr error
	}{
		{"should throw ErrNoPrices when nothing stored", 0, nil, ErrNoPrices},
		{"should throw ErrNoPrices on sql.ErrNoRows", 0, sql.ErrNoRows, ErrNoPrices},
		{"should pass through other errors", 0, errors.New("connection reset"), nil},
		{"should return prices", 5, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPricesRepository{}
			db := &Database{prices: repo}
			if tt.stored > 0 {
				if err := db.ReplacePrices(context.Background(), "aapl", mockCandles("AAPL", startTime, tt.stored)); err != nil {
					t.Fatalf("ReplacePrices() error = %v", err)
				}
			}
			repo.sqlError = tt.sqlErr

			got, err := db.GetPrices(context.Background(), "aapl")
			if tt.sqlErr != nil || tt.wantErr != nil {
				if err == nil {
					t.Fatalf("GetPrices() error = nil, want error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("GetPrices() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetPrices() error = %v", err)
			}
			want := mockCandles("AAPL", startTime, tt.stored)
			if len(got) != len(want) {
				t.Fatalf("GetPrices() len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Ticker != "AAPL" {
					t.Errorf("GetPrices() %s ticker got = %v, want AAPL", got[i].Date, got[i].Ticker)
				}
				if !got[i].Close.Equal(want[i].Close) {
					t.Errorf("GetPrices() %s close got = %v, want %v", got[i].Date, got[i].Close, want[i].Close)
				}
				if got[i].Volume != want[i].Volume {
					t.Errorf("GetPrices() %s volume got = %v, want %v", got[i].Date, got[i].Volume, want[i].Volume)
				}
			}
		})
	}
}

func TestDatabase_ReplacePrices_UpperCasesSymbol(t *testing.T) {
	repo := &mockPricesRepository{}
	db := &Database{prices: repo}
	if err := db.ReplacePrices(context.Background(), "msft", mockCandles("msft", startTime, 2)); err != nil {
		t.Fatalf("ReplacePrices() error = %v", err)
	}
	rows, ok := repo.stored["MSFT"]
	if !ok {
		t.Fatalf("ReplacePrices() stored under %v, want MSFT", repo.stored)
	}
	for _, r := range rows {
		if r.Symbol != "MSFT" {
			t.Errorf("ReplacePrices() row symbol = %v, want MSFT", r.Symbol)
		}
	}
}

func TestDatabase_GetSeries(t *testing.T) {
	db := &Database{prices: &mockPricesRepository{}}
	if err := db.ReplacePrices(context.Background(), "AAPL", mockCandles("AAPL", startTime, 3)); err != nil {
		t.Fatalf("ReplacePrices() error = %v", err)
	}
	series, err := db.GetSeries(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSeries() error = %v", err)
	}
	want := []float64{100.25, 101.25, 102.25}
	for i, s := range series {
		if s.Close != want[i] {
			t.Errorf("GetSeries() [%d] close = %v, want %v", i, s.Close, want[i])
		}
		if !s.Date.Equal(startTime.AddDate(0, 0, i)) {
			t.Errorf("GetSeries() [%d] date = %v", i, s.Date)
		}
	}
}

func TestTrimHistory(t *testing.T) {
	afternoon := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	candles := mockCandles("AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)

	tests := []struct {
		name      string
		now       time.Time
		days      int
		want      int
		wantFirst time.Time
	}{
		{"drops the day before the cutoff time", afternoon, 5, 5, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"keeps the cutoff day at midnight", midnight, 5, 6, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"keeps everything inside window", afternoon, 30, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"zero disables trimming", afternoon, 0, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimHistory(candles, tt.now, tt.days)
			if len(got) != tt.want {
				t.Fatalf("TrimHistory() len = %d, want %d", len(got), tt.want)
			}
			if !got[0].Date.Equal(tt.wantFirst) {
				t.Errorf("TrimHistory() first date = %v, want %v", got[0].Date, tt.wantFirst)
			}
		})
	}
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(context.Background(), "mysql", "")
	if !errors.Is(err, ErrDriverUnsupported) {
		t.Errorf("NewDatabase() error = %v, wantErr %v", err, ErrDriverUnsupported)
	}
}
