package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mabacktester/internal/engine"
	"mabacktester/types"
)

type priceStore interface {
	ReplacePrices(ctx context.Context, symbol string, candles []types.Candle) error
	GetPrices(ctx context.Context, symbol string) ([]types.Candle, error)
}

type candleFetcher interface {
	DailyCandles(ctx context.Context, symbol string) ([]types.Candle, error)
}

type backtestRunner interface {
	Config() engine.Config
	RunWith(ctx context.Context, symbol string, cfg engine.Config) (*engine.Result, error)
}

// Route binds a named handler to a method and path pattern.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Server serves the fetch, backtest and report endpoints.
type Server struct {
	store       priceStore
	fetcher     candleFetcher
	runner      backtestRunner
	historyDays int
	now         func() time.Time
}

// New creates a Server. Fetched series are trimmed to the last historyDays days
// before they are stored; zero keeps everything.
func New(store priceStore, fetcher candleFetcher, runner backtestRunner, historyDays int) *Server {
	return &Server{
		store:       store,
		fetcher:     fetcher,
		runner:      runner,
		historyDays: historyDays,
		now:         time.Now,
	}
}

func (s *Server) routes() []Route {
	return []Route{
		{"Health", http.MethodGet, "/healthz", handleHealth},
		{"FetchPrices", http.MethodGet, "/fetch/{symbol}", s.handleFetch},
		{"Backtest", http.MethodGet, "/backtest/{symbol}/{initial_investment:[0-9]+(?:\\.[0-9]+)?}", s.handleBacktest},
		{"BacktestReport", http.MethodGet, "/generatebacktestreport/{symbol}/{initial_investment:[0-9]+(?:\\.[0-9]+)?}", s.handleReport},
	}
}

// Router returns the mux with every route wrapped in the request logger.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	for _, route := range s.routes() {
		var handler http.Handler
		handler = route.HandlerFunc
		handler = RESTLogger(handler, route.Name)

		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(handler)
	}
	return router
}

// RESTLogger logs method, URI, route name and duration of every request.
func RESTLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)

		log.Printf(
			"http: %s\t%s\t%s\t%s",
			r.Method,
			r.RequestURI,
			name,
			time.Since(start),
		)
	})
}

// ListenAndServe serves h on addr until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
