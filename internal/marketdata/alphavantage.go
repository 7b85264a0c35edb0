package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/shopspring/decimal"

	"mabacktester/types"
)

var (
	ErrUpstream      = errors.New("market data provider error")
	ErrNoTimeSeries  = errors.New("no time series data available for the given symbol")
	ErrMissingAPIKey = errors.New("alpha vantage api key not configured")
)

const (
	DefaultBaseURL    = "https://www.alphavantage.co/query"
	DefaultFunction   = "TIME_SERIES_DAILY"
	DefaultOutputSize = "full"

	timeSeriesKey = "Time Series (Daily)"
	previewLen    = 120
)

// Keys Alpha Vantage uses to report a failed call with a 200 status.
var errorKeys = []string{"Error Message", "Note", "Information"}

var defaultBackoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

type Options struct {
	BaseURL    string
	Function   string
	APIKey     string
	OutputSize string
}

// Client fetches daily OHLCV series from Alpha Vantage.
type Client struct {
	opts     Options
	http     *http.Client
	backoffs []time.Duration
}

// NewClient fills empty options with the provider defaults. A nil httpClient uses
// http.DefaultClient.
func NewClient(opts Options, httpClient *http.Client) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Function == "" {
		opts.Function = DefaultFunction
	}
	if opts.OutputSize == "" {
		opts.OutputSize = DefaultOutputSize
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{opts: opts, http: httpClient, backoffs: defaultBackoffs}
}

// WithBackoffs replaces the wait between attempts. The number of attempts is
// len(backoffs)+1.
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// DailyCandles returns the daily candles of symbol sorted ascending by date.
// Transport failures, 429 and 5xx responses are retried; anything the provider
// reports in the payload is not.
func (c *Client) DailyCandles(ctx context.Context, symbol string) ([]types.Candle, error) {
	if c.opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	symbol = strings.ToUpper(symbol)
	reqURL, err := c.url(symbol)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < len(c.backoffs)+1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoffs[attempt-1]):
			}
		}

		body, retry, err := c.get(ctx, reqURL)
		if err == nil {
			return parseDaily(symbol, body)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrUpstream, symbol, len(c.backoffs)+1, lastErr)
}

func (c *Client) url(symbol string) (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("alpha vantage base url: %w", err)
	}
	q := u.Query()
	q.Set("function", c.opts.Function)
	q.Set("symbol", symbol)
	q.Set("apikey", c.opts.APIKey)
	q.Set("outputsize", c.opts.OutputSize)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// get performs one attempt and reports whether a failure is worth retrying.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, true, fmt.Errorf("failed to read alpha vantage response: %w", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("alpha vantage returned %d: %s", resp.StatusCode, preview(body))
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%w: alpha vantage returned %d: %s", ErrUpstream, resp.StatusCode, preview(body))
	}
	return body, false, nil
}

func parseDaily(symbol string, body []byte) ([]types.Candle, error) {
	for _, key := range errorKeys {
		if msg, err := jsonparser.GetString(body, key); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, msg)
		}
	}

	series, dataType, _, err := jsonparser.Get(body, timeSeriesKey)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoTimeSeries)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("%w: %q is %s, not an object", ErrUpstream, timeSeriesKey, dataType)
	}

	var candles []types.Candle
	err = jsonparser.ObjectEach(series, func(key []byte, value []byte, _ jsonparser.ValueType, _ int) error {
		c, err := parseCandle(symbol, string(key), value)
		if err != nil {
			return err
		}
		candles = append(candles, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoTimeSeries)
	}

	slices.SortFunc(candles, func(a, b types.Candle) int {
		return a.Date.Compare(b.Date)
	})
	return candles, nil
}

func parseCandle(symbol, date string, value []byte) (types.Candle, error) {
	day, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return types.Candle{}, fmt.Errorf("date %q: %w", date, err)
	}

	c := types.Candle{Ticker: symbol, Date: day}
	prices := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"1. open", &c.Open},
		{"2. high", &c.High},
		{"3. low", &c.Low},
		{"4. close", &c.Close},
	}
	for _, p := range prices {
		raw, err := jsonparser.GetString(value, p.key)
		if err != nil {
			return types.Candle{}, fmt.Errorf("%s %q: %w", date, p.key, err)
		}
		if *p.dst, err = decimal.NewFromString(raw); err != nil {
			return types.Candle{}, fmt.Errorf("%s %q: %w", date, p.key, err)
		}
	}

	raw, err := jsonparser.GetString(value, "5. volume")
	if err != nil {
		return types.Candle{}, fmt.Errorf("%s volume: %w", date, err)
	}
	if c.Volume, err = strconv.ParseInt(raw, 10, 64); err != nil {
		return types.Candle{}, fmt.Errorf("%s volume: %w", date, err)
	}
	return c, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > previewLen {
		s = s[:previewLen]
	}
	return s
}
