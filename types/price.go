package types

import "time"

// DateLayout is the calendar date format used by the market data provider and the API.
const DateLayout = "2006-01-02"

// PriceSample is a single daily close. A series is ordered strictly ascending by Date.
type PriceSample struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close_price"`
}

// SamplesFromCandles keeps the order of candles.
func SamplesFromCandles(candles []Candle) []PriceSample {
	out := make([]PriceSample, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Sample())
	}
	return out
}

// Closes extracts the close prices of a series.
func Closes(series []PriceSample) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = s.Close
	}
	return out
}
