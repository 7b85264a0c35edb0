package types

import "time"

type Side string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// Trade is one full conversion between cash and shares.
type Trade struct {
	Side   Side      `json:"side"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Shares float64   `json:"shares"`
	// Cash is the amount converted: spent on a buy, received on a sell.
	Cash float64 `json:"cash"`
}
