package api

import (
	"encoding/json"
	"strings"
	"time"
)

// flexTime accepts the timestamp shapes the backend emits: RFC 3339 with or
// without offset, naive ISO 8601, and plain dates.
type flexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range flexLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			f.Time = t
			return nil
		}
		lastErr = err
	}
	return lastErr
}

type quoteResponse struct {
	Ticker    string   `json:"ticker"`
	Price     float64  `json:"price"`
	Source    string   `json:"source"`
	Timestamp flexTime `json:"timestamp"`
	Error     string   `json:"error"`
}

type historyRow struct {
	Date  flexTime `json:"date"`
	Close *float64 `json:"Close"`
}

type historyResponse struct {
	Data  []historyRow `json:"data"`
	Error string       `json:"error"`
}

type dividendRow struct {
	Date   flexTime `json:"date"`
	Amount float64  `json:"amount"`
}

type dividendsResponse struct {
	Dividends []dividendRow `json:"dividends"`
	Error     string        `json:"error"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	Subscription string `json:"subscription"`
}

// UserResponse is returned by auth/me.
type UserResponse struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Caching  bool   `json:"caching"`
}

// SafetyRequest is the body of dividend/safety-score.
type SafetyRequest struct {
	Ticker         string  `json:"ticker"`
	PayoutRatio    float64 `json:"payout_ratio"`
	EarningsGrowth float64 `json:"earnings_growth"`
	DebtToEquity   float64 `json:"debt_to_equity"`
	FCFTrend       float64 `json:"fcf_trend"`
}

// CaptureRequest is the body of dividend/capture-strategy.
type CaptureRequest struct {
	Ticker            string  `json:"ticker"`
	ExDividendDate    string  `json:"ex_dividend_date"`
	DividendAmount    float64 `json:"dividend_amount"`
	CurrentPrice      float64 `json:"current_price"`
	HoldingPeriodDays int     `json:"holding_period_days"`
}

type paymentResponse struct {
	TransactionID string `json:"transaction_id"`
	WalletAddress string `json:"wallet_address"`
}
