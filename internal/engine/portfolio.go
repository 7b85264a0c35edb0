package engine

import (
	"time"

	"mabacktester/types"
)

// portfolio is the single-asset, all-in or all-out position of one run.
// At most one of cash and shares is non-zero after the first trade.
type portfolio struct {
	cash   float64
	shares float64
	trades []types.Trade
}

func newPortfolio(initialCash float64) *portfolio {
	return &portfolio{cash: initialCash}
}

// buy converts all cash into shares. price has been validated as positive.
func (p *portfolio) buy(date time.Time, price float64) {
	spent := p.cash
	p.shares = p.cash / price
	p.cash = 0
	p.trades = append(p.trades, types.Trade{
		Side:   types.SideTypeBuy,
		Date:   date,
		Price:  price,
		Shares: p.shares,
		Cash:   spent,
	})
}

// sell converts all shares into cash.
func (p *portfolio) sell(date time.Time, price float64) {
	sold := p.shares
	p.cash = p.shares * price
	p.shares = 0
	p.trades = append(p.trades, types.Trade{
		Side:   types.SideTypeSell,
		Date:   date,
		Price:  price,
		Shares: sold,
		Cash:   p.cash,
	})
}

func (p *portfolio) apply(side types.Side, date time.Time, price float64) {
	switch side {
	case types.SideTypeBuy:
		p.buy(date, price)
	case types.SideTypeSell:
		p.sell(date, price)
	}
}

// value marks any open position at price.
func (p *portfolio) value(price float64) float64 {
	if p.shares > 0 {
		return p.cash + p.shares*price
	}
	return p.cash
}

func (p *portfolio) totalTrades() int {
	return len(p.trades)
}

// drawdownTracker follows the running peak of the portfolio value.
type drawdownTracker struct {
	peak        float64
	maxDrawdown float64
}

func (d *drawdownTracker) update(value float64) {
	if value > d.peak {
		d.peak = value
		return
	}
	if d.peak > 0 {
		dd := (d.peak - value) / d.peak
		if dd > d.maxDrawdown {
			d.maxDrawdown = dd
		}
	}
}
