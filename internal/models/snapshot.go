package models

import "time"

// MarketSnapshot is the atomically committed quote, history and dividends
// for one ticker.
type MarketSnapshot struct {
	Ticker     string       `json:"ticker"`
	Quote      Quote        `json:"quote"`
	History    []PricePoint `json:"history"`   // chronological
	Dividends  []Dividend   `json:"dividends"` // most recent first
	Generation uint64       `json:"generation"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// DividendYield pairs a dividend with its estimated yield.
type DividendYield struct {
	Dividend
	YieldPercent float64 `json:"yield_percent"`
	Known        bool    `json:"known"`
}

// EstimatedYield returns amount / price * 100. The current price is used for
// every dividend, so this is an approximation rather than a historical yield.
func EstimatedYield(amount, price float64) (float64, bool) {
	if price <= 0 {
		return 0, false
	}
	return amount / price * 100, true
}

// DividendYields computes the estimated yield of every dividend against the
// snapshot's quote price.
func (s MarketSnapshot) DividendYields() []DividendYield {
	out := make([]DividendYield, len(s.Dividends))
	for i, d := range s.Dividends {
		pct, ok := EstimatedYield(d.Amount, s.Quote.Price)
		out[i] = DividendYield{Dividend: d, YieldPercent: pct, Known: ok}
	}
	return out
}
