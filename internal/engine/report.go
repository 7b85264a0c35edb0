package engine

import (
	"time"

	"github.com/google/uuid"

	"mabacktester/types"
)

// Report is the result of one backtest run. It is not modified after Run returns.
type Report struct {
	RunID             uuid.UUID
	Symbol            string
	Start             time.Time
	End               time.Time
	InitialInvestment float64
	FinalValue        float64

	// TotalReturn is a percentage and can be negative.
	TotalReturn float64
	// MaxDrawdown is a fraction in [0, 1].
	MaxDrawdown float64
	TotalTrades int

	// PortfolioValues holds cash plus shares marked at that day's close, one per sample.
	PortfolioValues []float64
	Dates           []time.Time
	Trades          []types.Trade
}
