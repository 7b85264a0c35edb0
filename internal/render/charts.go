package render

import (
	"errors"

	"github.com/vicanso/go-charts/v2"

	"mabacktester/internal/engine"
	"mabacktester/types"
)

var ErrNotEnoughPoints = errors.New("not enough data points")

const (
	chartWidth  = 800
	chartHeight = 320
	xLabels     = 10
)

// PortfolioChart renders the daily portfolio value of report as a PNG line chart.
func PortfolioChart(report *engine.Report) ([]byte, error) {
	labels := make([]string, len(report.Dates))
	for i, d := range report.Dates {
		labels[i] = d.Format(types.DateLayout)
	}
	return lineChart("Backtest Performance for "+report.Symbol, "Portfolio Value ($)", labels, report.PortfolioValues)
}

// PriceChart renders the close prices of series as a PNG line chart.
func PriceChart(symbol string, series []types.PriceSample) ([]byte, error) {
	labels := make([]string, len(series))
	for i, s := range series {
		labels[i] = s.Date.Format(types.DateLayout)
	}
	return lineChart("Stock Data for "+symbol, "Stock Price ($)", labels, types.Closes(series))
}

func lineChart(title, legend string, labels []string, values []float64) ([]byte, error) {
	if len(values) < 2 {
		return nil, ErrNotEnoughPoints
	}
	yMin, yMax := paddedRange(values)

	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: xLabels}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: []string{legend}}),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// paddedRange widens [min, max] by 5% so flat series still get a visible band.
func paddedRange(values []float64) (float64, float64) {
	yMin, yMax := values[0], values[0]
	for _, v := range values[1:] {
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	if pad == 0 {
		pad = 1
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	return yMin, yMax + pad
}
