package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mabacktester/types"
)

// writeCSVFiles writes <symbol>_values.csv and <symbol>_trades.csv into dir.
func writeCSVFiles(dir string, res *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}
	name := strings.ToUpper(res.Report.Symbol)
	if name == "" {
		name = res.Report.RunID.String()
	}

	err := writeFile(filepath.Join(dir, name+"_values.csv"), func(w io.Writer) error {
		return writeValuesCSV(w, res.Series, res.Report)
	})
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, name+"_trades.csv"), func(w io.Writer) error {
		return writeTradesCSV(w, res.Report.Trades)
	})
}

// writeFile creates path, fills it with write and reports the first error of the
// write or the close.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeValuesCSV writes one row per day: date, close and portfolio value.
func writeValuesCSV(w io.Writer, series []types.PriceSample, report *Report) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"date", "close_price", "portfolio_value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, v := range report.PortfolioValues {
		if i >= len(series) {
			break
		}
		record := []string{
			series[i].Date.Format(types.DateLayout),
			formatFloat(series[i].Close),
			formatFloat(v),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// writeTradesCSV writes the trade log to any io.Writer as CSV.
func writeTradesCSV(w io.Writer, trades []types.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"trade",
		"side",
		"date",
		"price",
		"shares",
		"cash",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range trades {
		record := []string{
			strconv.Itoa(i + 1),
			string(t.Side),
			t.Date.Format(types.DateLayout),
			formatFloat(t.Price),
			formatFloat(t.Shares),
			formatFloat(t.Cash),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
