package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabacktester/internal/engine"
	"mabacktester/types"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testResult(n int) *engine.Result {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make([]types.PriceSample, n)
	values := make([]float64, n)
	dates := make([]time.Time, n)
	for i := range series {
		d := start.AddDate(0, 0, i)
		series[i] = types.PriceSample{Date: d, Close: 100 + float64(i%7)}
		values[i] = 1000 + 5*float64(i)
		dates[i] = d
	}
	return &engine.Result{
		Report: &engine.Report{
			RunID:             uuid.New(),
			Symbol:            "AAPL",
			Start:             start,
			End:               dates[n-1],
			InitialInvestment: 1000,
			FinalValue:        values[n-1],
			TotalReturn:       -16.040100250626573,
			MaxDrawdown:       0.31077694235588976,
			TotalTrades:       2,
			PortfolioValues:   values,
			Dates:             dates,
		},
		Series: series,
	}
}

func TestCharts(t *testing.T) {
	res := testResult(60)

	img, err := PortfolioChart(res.Report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	img, err = PriceChart("AAPL", res.Series)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestCharts_NotEnoughPoints(t *testing.T) {
	res := testResult(1)
	_, err := PortfolioChart(res.Report)
	assert.ErrorIs(t, err, ErrNotEnoughPoints)
	_, err = PriceChart("AAPL", res.Series)
	assert.ErrorIs(t, err, ErrNotEnoughPoints)
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([]float64{100, 120, 110})
	assert.InDelta(t, 99, lo, 1e-9)
	assert.InDelta(t, 121, hi, 1e-9)

	lo, hi = paddedRange([]float64{0, 0})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestMetrics(t *testing.T) {
	rows := Metrics(testResult(3).Report)
	assert.Equal(t, [][2]string{
		{"Metric", "Value"},
		{"Total Return", "-16.04%"},
		{"Max Drawdown", "31.08%"},
		{"Total Trades", "2"},
	}, rows)
}

func TestWritePDF(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"with charts", 120},
		{"single sample", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WritePDF(&buf, testResult(tt.n)))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		})
	}
}

func TestReportFilename(t *testing.T) {
	assert.Equal(t, "MSFT_backtest_report.pdf", ReportFilename("msft"))
}
