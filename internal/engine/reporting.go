package engine

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"mabacktester/types"
)

const tradingDaysPerYear = 252

// Summary holds the statistics derived from a Report after the run.
type Summary struct {
	MaxDrawdownDuration time.Duration
	SharpeRatio         float64
	CAGR                float64
	RoundTrips          int
	WinRate             float64
}

// Summarize computes the derived statistics of report concurrently.
func Summarize(report *Report, riskFreeRate float64) Summary {
	var summary Summary

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		summary.MaxDrawdownDuration = calcDrawdownDuration(report.PortfolioValues, report.Dates)
	}()
	go func() {
		defer wg.Done()
		summary.SharpeRatio = calcSharpeRatio(report.PortfolioValues, riskFreeRate)
	}()
	go func() {
		defer wg.Done()
		summary.CAGR = calcCAGR(report)
	}()
	go func() {
		defer wg.Done()
		summary.RoundTrips, summary.WinRate = calcWinRate(report.Trades)
	}()
	wg.Wait()

	return summary
}

// calcDrawdownDuration returns the time between the peak and the trough of the deepest
// drawdown.
func calcDrawdownDuration(values []float64, dates []time.Time) time.Duration {
	if len(values) == 0 || len(values) != len(dates) {
		return 0
	}

	peak := 0.0
	var peakTime time.Time
	maxDD := 0.0
	var duration time.Duration

	for i, v := range values {
		if v > peak {
			peak = v
			peakTime = dates[i]
			continue
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
				duration = dates[i].Sub(peakTime)
			}
		}
	}
	return duration
}

// calcSharpeRatio annualises the mean daily excess return over its sample deviation.
func calcSharpeRatio(values []float64, annualRiskFree float64) float64 {
	rfDaily := math.Pow(1.0+annualRiskFree, 1.0/tradingDaysPerYear) - 1.0

	excess := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		excess = append(excess, values[i]/values[i-1]-1-rfDaily)
	}
	if len(excess) < 2 {
		return 0
	}

	var sum float64
	for _, x := range excess {
		sum += x
	}
	mean := sum / float64(len(excess))

	var varianceSum float64
	for _, x := range excess {
		diff := x - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(excess)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func calcCAGR(report *Report) float64 {
	years := report.End.Sub(report.Start).Hours() / 24 / 365.25
	if years <= 0 || report.InitialInvestment <= 0 || report.FinalValue <= 0 {
		return 0
	}
	return math.Pow(report.FinalValue/report.InitialInvestment, 1/years) - 1
}

// calcWinRate pairs each buy with the following sell. An open position at the end
// is not a round trip.
func calcWinRate(trades []types.Trade) (int, float64) {
	var roundTrips, wins int
	var entry *types.Trade
	for i := range trades {
		tr := &trades[i]
		switch tr.Side {
		case types.SideTypeBuy:
			entry = tr
		case types.SideTypeSell:
			if entry == nil {
				continue
			}
			roundTrips++
			if tr.Cash > entry.Cash {
				wins++
			}
			entry = nil
		}
	}
	if roundTrips == 0 {
		return 0, 0
	}
	return roundTrips, float64(wins) / float64(roundTrips) * 100
}

// PrintReport writes a human readable report of one run.
func PrintReport(w io.Writer, report *Report, summary Summary) {
	fmt.Fprintln(w, "===== Backtest Report =====")
	fmt.Fprintf(w, "Symbol:                %s\n", report.Symbol)
	fmt.Fprintf(w, "Run:                   %s\n", report.RunID)
	fmt.Fprintf(w, "Period:                %s to %s\n", report.Start.Format(types.DateLayout), report.End.Format(types.DateLayout))
	fmt.Fprintf(w, "Initial Investment:    %.2f\n", report.InitialInvestment)
	fmt.Fprintf(w, "Final Value:           %.2f\n", report.FinalValue)

	fmt.Fprintln(w, "\n-- Performance --")
	fmt.Fprintf(w, "Total Return:          %.2f%%\n", report.TotalReturn)
	fmt.Fprintf(w, "CAGR:                  %.2f%%\n", summary.CAGR*100)
	fmt.Fprintf(w, "Sharpe Ratio:          %.2f\n", summary.SharpeRatio)

	fmt.Fprintln(w, "\n-- Drawdown --")
	fmt.Fprintf(w, "Max Drawdown:          %.2f%%\n", report.MaxDrawdown*100)
	fmt.Fprintf(w, "Max Drawdown Days:     %d\n", summary.MaxDrawdownDuration/(24*time.Hour))

	fmt.Fprintln(w, "\n-- Trades --")
	fmt.Fprintf(w, "Total Trades:          %d\n", report.TotalTrades)
	fmt.Fprintf(w, "Round Trips:           %d\n", summary.RoundTrips)
	fmt.Fprintf(w, "Win Rate:              %.2f%%\n", summary.WinRate)
	fmt.Fprintln(w, "===========================")
}

// PrintResultsTable renders one row per finished run. Nil results are skipped.
func PrintResultsTable(w io.Writer, results []*Result) {
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Days", "Total Return", "Max Drawdown", "Trades", "Final Value")
	for _, res := range results {
		if res == nil {
			continue
		}
		r := res.Report
		table.Append(
			r.Symbol,
			fmt.Sprintf("%d", len(r.PortfolioValues)),
			fmt.Sprintf("%.2f%%", r.TotalReturn),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%d", r.TotalTrades),
			fmt.Sprintf("%.2f", r.FinalValue),
		)
	}
	table.Render()
}
