package engine

import (
	"math"
	"time"

	"mabacktester/types"
)

var testStart = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

// seriesFromCloses dates the closes on consecutive calendar days.
func seriesFromCloses(closes []float64) []types.PriceSample {
	series := make([]types.PriceSample, len(closes))
	for i, c := range closes {
		series[i] = types.PriceSample{Date: testStart.AddDate(0, 0, i), Close: c}
	}
	return series
}

func sineCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 20*math.Sin(2*math.Pi*float64(i)/60.0) + 0.05*float64(i)
	}
	return out
}

// vCloses falls by 0.5 a day until bottom, then climbs by 2 a day.
func vCloses(n, bottom int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i <= bottom {
			out[i] = 200 - 0.5*float64(i)
		} else {
			out[i] = 200 - 0.5*float64(bottom) + 2.0*float64(i-bottom)
		}
	}
	return out
}

// peakCloses climbs by 1 a day until top, then falls by 1 a day.
func peakCloses(n, top int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i <= top {
			out[i] = 100 + float64(i)
		} else {
			out[i] = 100 + float64(top) - float64(i-top)
		}
	}
	return out
}

// naiveMean averages the trailing min(index+1, window) closes from scratch.
func naiveMean(closes []float64, index, window int) float64 {
	start := index - window + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, c := range closes[start : index+1] {
		sum += c
	}
	return sum / float64(index-start+1)
}

type naiveResult struct {
	trades int
	values []float64
}

// naiveBacktest recomputes both averages for every day.
func naiveBacktest(closes []float64, shortWindow, longWindow int, initial float64) naiveResult {
	cash, shares := initial, 0.0
	res := naiveResult{}
	for i, c := range closes {
		shortMA := naiveMean(closes, i, shortWindow)
		longMA := naiveMean(closes, i, longWindow)
		if cash > 0 && c < shortMA {
			shares = cash / c
			cash = 0
			res.trades++
		} else if shares > 0 && c > longMA {
			cash = shares * c
			shares = 0
			res.trades++
		}
		res.values = append(res.values, cash+shares*c)
	}
	return res
}
