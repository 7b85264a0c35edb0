package engine

import "mabacktester/types"

// crossoverSignal decides the action for one day. The buy rule is checked first and
// the sell rule only when it does not fire, so a day never yields both.
func crossoverSignal(price, shortMA, longMA float64, p *portfolio) (types.Side, bool) {
	if p.cash > 0 && price < shortMA {
		return types.SideTypeBuy, true
	} else if p.shares > 0 && price > longMA {
		return types.SideTypeSell, true
	}
	return "", false
}
