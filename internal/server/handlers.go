package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"mabacktester/internal/engine"
	"mabacktester/internal/marketdata"
	"mabacktester/internal/render"
	"mabacktester/internal/repository"
	"mabacktester/types"
)

const noDataMessage = "no data available for the specified symbol"

type priceResponse struct {
	Open   decimal.Decimal `json:"open_price"`
	High   decimal.Decimal `json:"high_price"`
	Low    decimal.Decimal `json:"low_price"`
	Close  decimal.Decimal `json:"close_price"`
	Volume int64           `json:"volume"`
}

type computeData struct {
	TotalReturn     float64   `json:"total_return"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	TotalTrades     int       `json:"total_trades"`
	PortfolioValues []float64 `json:"portfolio_values"`
}

type stockPoint struct {
	Date       string  `json:"date"`
	ClosePrice float64 `json:"close_price"`
}

type backtestResponse struct {
	ComputeData computeData  `json:"compute_data"`
	StockData   []stockPoint `json:"stock_data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleFetch downloads the daily series, replaces the stored rows of the symbol
// and returns what was stored keyed by date.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	candles, err := s.fetcher.DailyCandles(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	candles = repository.TrimHistory(candles, s.now(), s.historyDays)
	if err := s.store.ReplacePrices(r.Context(), symbol, candles); err != nil {
		writeError(w, fmt.Errorf("store %s: %w", symbol, err))
		return
	}
	log.Printf("fetch: stored %d rows for %s", len(candles), symbol)

	out := make(map[string]priceResponse, len(candles))
	for _, c := range candles {
		out[c.Date.Format(types.DateLayout)] = priceResponse{
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	res, err := s.runBacktest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := backtestResponse{
		ComputeData: computeData{
			TotalReturn:     res.Report.TotalReturn,
			MaxDrawdown:     res.Report.MaxDrawdown,
			TotalTrades:     res.Report.TotalTrades,
			PortfolioValues: res.Report.PortfolioValues,
		},
		StockData: make([]stockPoint, 0, len(res.Series)),
	}
	for _, sample := range res.Series {
		resp.StockData = append(resp.StockData, stockPoint{
			Date:       sample.Date.Format(types.DateLayout),
			ClosePrice: sample.Close,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, err := s.runBacktest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.WritePDF(&buf, res); err != nil {
		writeError(w, fmt.Errorf("render report %s: %w", res.Report.Symbol, err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.ReportFilename(res.Report.Symbol)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) runBacktest(r *http.Request) (*engine.Result, error) {
	vars := mux.Vars(r)
	initial, err := strconv.ParseFloat(vars["initial_investment"], 64)
	if err != nil {
		return nil, fmt.Errorf("initial investment %q: %w", vars["initial_investment"], engine.ErrInvalidConfiguration)
	}
	cfg := s.runner.Config().WithInitialInvestment(initial)
	return s.runner.RunWith(r.Context(), vars["symbol"], cfg)
}

// statusFor maps an error to the response status and the message shown to clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNoData), errors.Is(err, repository.ErrNoPrices):
		return http.StatusNotFound, noDataMessage
	case errors.Is(err, marketdata.ErrNoTimeSeries):
		return http.StatusNotFound, marketdata.ErrNoTimeSeries.Error()
	case errors.Is(err, engine.ErrInvalidConfiguration),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrUnorderedSeries):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, marketdata.ErrUpstream):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("http: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
