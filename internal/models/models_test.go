package models

import (
	"math"
	"testing"
	"time"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
		ok   bool
	}{
		{"free", TierFree, true},
		{" Premium ", TierPremium, true},
		{"ELITE", TierElite, true},
		{"platinum", TierFree, false},
		{"", TierFree, false},
	}
	for _, tt := range tests {
		got, ok := ParseTier(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTier(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if TierElite.Rank() <= TierPremium.Rank() || TierPremium.Rank() <= TierFree.Rank() {
		t.Error("tiers out of order")
	}
	if Tier("gold").Rank() != TierFree.Rank() {
		t.Error("unknown tier should rank as free")
	}
}

func TestDividendYields(t *testing.T) {
	snap := MarketSnapshot{
		Quote: Quote{Ticker: "AAPL", Price: 100},
		Dividends: []Dividend{
			{Date: time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC), Amount: 0.5},
			{Date: time.Date(2023, 11, 10, 0, 0, 0, 0, time.UTC), Amount: 0.24},
		},
	}

	yields := snap.DividendYields()
	if len(yields) != 2 {
		t.Fatalf("got %d yields", len(yields))
	}
	if !yields[0].Known || math.Abs(yields[0].YieldPercent-0.5) > 1e-9 {
		t.Errorf("first yield = %+v", yields[0])
	}

	snap.Quote.Price = 0
	for _, y := range snap.DividendYields() {
		if y.Known {
			t.Errorf("yield without a price should be unknown: %+v", y)
		}
	}
}

func TestSessionIdentity(t *testing.T) {
	s := EmptySession()
	if s.IsAuthenticated() || s.Email() != "" || s.Tier != TierFree {
		t.Errorf("empty session = %+v", s)
	}

	s = Session{Token: "t", Identity: &Identity{Email: "a@b.co"}, Tier: TierPremium}
	if !s.IsAuthenticated() || s.Email() != "a@b.co" {
		t.Errorf("session = %+v", s)
	}
	if NormalizeTicker(" brk.b ") != "BRK.B" {
		t.Error("NormalizeTicker")
	}
}
