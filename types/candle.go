package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one stored daily OHLCV row for a ticker.
type Candle struct {
	Ticker string          `json:"ticker"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Sample converts the candle into the close-only view the engine consumes.
func (c Candle) Sample() PriceSample {
	return PriceSample{
		Date:  c.Date,
		Close: c.Close.InexactFloat64(),
	}
}
