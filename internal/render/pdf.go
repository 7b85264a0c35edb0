package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"mabacktester/internal/engine"
	"mabacktester/types"
)

const (
	pageMargin  = 50.0
	imageWidth  = 500.0
	imageHeight = 200.0
	cellWidth   = 200.0
	cellHeight  = 22.0
)

// ReportFilename is the attachment name of the PDF report for symbol.
func ReportFilename(symbol string) string {
	return strings.ToUpper(symbol) + "_backtest_report.pdf"
}

// Metrics returns the metric table rows shown in the PDF, header first.
func Metrics(report *engine.Report) [][2]string {
	return [][2]string{
		{"Metric", "Value"},
		{"Total Return", fmt.Sprintf("%.2f%%", report.TotalReturn)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", report.MaxDrawdown*100)},
		{"Total Trades", fmt.Sprintf("%d", report.TotalTrades)},
	}
}

// WritePDF writes a one page Letter report with the portfolio and price charts
// followed by the metrics table. Series too short to chart are noted instead.
func WritePDF(w io.Writer, res *engine.Result) error {
	report := res.Report
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(fmt.Sprintf("Backtest report %s", report.Symbol), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pageMargin, 50, "Backtest Report: "+report.Symbol)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pageMargin, 68, fmt.Sprintf("%s to %s, initial investment %.2f, run %s",
		report.Start.Format(types.DateLayout), report.End.Format(types.DateLayout),
		report.InitialInvestment, report.RunID))

	portfolio, chartErr := PortfolioChart(report)
	if err := placeChart(pdf, "portfolio", portfolio, chartErr, 85); err != nil {
		return fmt.Errorf("portfolio chart: %w", err)
	}

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(pageMargin, 310, "Stock Data for "+report.Symbol)
	price, chartErr := PriceChart(report.Symbol, res.Series)
	if err := placeChart(pdf, "price", price, chartErr, 320); err != nil {
		return fmt.Errorf("price chart: %w", err)
	}

	drawMetrics(pdf, Metrics(report), 560)

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func placeChart(pdf *fpdf.Fpdf, name string, png []byte, renderErr error, y float64) error {
	if errors.Is(renderErr, ErrNotEnoughPoints) {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Text(pageMargin, y+20, "Not enough data points to chart.")
		return nil
	}
	if renderErr != nil {
		return renderErr
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	pdf.ImageOptions(name, pageMargin, y, imageWidth, imageHeight, false, opts, 0, "")
	return pdf.Error()
}

func drawMetrics(pdf *fpdf.Fpdf, rows [][2]string, y float64) {
	pdf.SetXY(pageMargin, y)
	pdf.SetDrawColor(0, 0, 0)
	for i, row := range rows {
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.SetFillColor(128, 128, 128)
			pdf.SetTextColor(245, 245, 245)
		} else {
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetFillColor(245, 245, 220)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.SetX(pageMargin)
		pdf.CellFormat(cellWidth, cellHeight, row[0], "1", 0, "C", true, 0, "")
		pdf.CellFormat(cellWidth, cellHeight, row[1], "1", 1, "C", true, 0, "")
	}
}
