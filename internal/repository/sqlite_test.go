package repository

import (
	"context"
	"errors"
	"testing"

	"mabacktester/types"
)

func newTestSQLite(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestSQLite_RoundTrip(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	want := mockCandles("AAPL", startTime, 4)
	// stored out of order, read back ascending
	shuffled := []int{2, 0, 3, 1}
	input := make([]types.Candle, 0, len(want))
	for _, i := range shuffled {
		input = append(input, want[i])
	}
	if err := db.ReplacePrices(ctx, "AAPL", input); err != nil {
		t.Fatalf("ReplacePrices() error = %v", err)
	}

	got, err := db.GetPrices(ctx, "aapl")
	if err != nil {
		t.Fatalf("GetPrices() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("GetPrices() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) {
			t.Errorf("GetPrices() [%d] date = %v, want %v", i, got[i].Date, want[i].Date)
		}
		if !got[i].Open.Equal(want[i].Open) || !got[i].High.Equal(want[i].High) ||
			!got[i].Low.Equal(want[i].Low) || !got[i].Close.Equal(want[i].Close) {
			t.Errorf("GetPrices() [%d] = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].Volume != want[i].Volume {
			t.Errorf("GetPrices() [%d] volume = %d, want %d", i, got[i].Volume, want[i].Volume)
		}
	}
}

func TestSQLite_ReplaceIsScopedToSymbol(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	if err := db.ReplacePrices(ctx, "AAPL", mockCandles("AAPL", startTime, 5)); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplacePrices(ctx, "MSFT", mockCandles("MSFT", startTime, 3)); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplacePrices(ctx, "AAPL", mockCandles("AAPL", startTime.AddDate(0, 1, 0), 2)); err != nil {
		t.Fatal(err)
	}

	aapl, err := db.GetPrices(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(aapl) != 2 {
		t.Errorf("AAPL rows = %d, want 2", len(aapl))
	}
	msft, err := db.GetPrices(ctx, "MSFT")
	if err != nil {
		t.Fatal(err)
	}
	if len(msft) != 3 {
		t.Errorf("MSFT rows = %d, want 3", len(msft))
	}
}

func TestSQLite_DuplicateDateRollsBack(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	if err := db.ReplacePrices(ctx, "AAPL", mockCandles("AAPL", startTime, 3)); err != nil {
		t.Fatal(err)
	}
	dup := mockCandles("AAPL", startTime, 2)
	dup = append(dup, dup[0])
	if err := db.ReplacePrices(ctx, "AAPL", dup); err == nil {
		t.Fatal("ReplacePrices() with duplicate date error = nil")
	}

	got, err := db.GetPrices(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("rows after failed replace = %d, want 3", len(got))
	}
}

func TestSQLite_NoPrices(t *testing.T) {
	db := newTestSQLite(t)
	_, err := db.GetSeries(context.Background(), "NONE")
	if !errors.Is(err, ErrNoPrices) {
		t.Errorf("GetSeries() error = %v, wantErr %v", err, ErrNoPrices)
	}
}
