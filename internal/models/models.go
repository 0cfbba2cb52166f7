// Package models provides domain models for the dividend tracker client.
package models

import (
	"strings"
	"time"
)

// Tier represents a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierElite   Tier = "elite"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierFree, TierPremium, TierElite}

// ParseTier parses a tier name. Unknown names report ok=false.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, true
	case TierPremium:
		return TierPremium, true
	case TierElite:
		return TierElite, true
	default:
		return TierFree, false
	}
}

// Rank returns the position of the tier in Tiers. Unknown tiers rank as free.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return 0
}

// Identity identifies the logged-in user.
type Identity struct {
	Email string `json:"email"`
}

// Session is the client's view of authentication state.
// Identity is present exactly when Token is non-empty.
type Session struct {
	Token    string    `json:"-"`
	Identity *Identity `json:"identity,omitempty"`
	Tier     Tier      `json:"tier"`
}

// EmptySession returns the unauthenticated session.
func EmptySession() Session {
	return Session{Tier: TierFree}
}

// IsAuthenticated returns true if the session carries a token and identity.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.Identity != nil
}

// Email returns the identity email or an empty string.
func (s Session) Email() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Quote is the latest price for a ticker.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Dividend is one dividend payment.
type Dividend struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// HealthStatus is the remote service health report.
type HealthStatus struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Caching  bool   `json:"caching"`
}
