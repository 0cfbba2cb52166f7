package entitlement

import "divtrack/internal/models"

// Plan describes one purchasable tier.
type Plan struct {
	Tier   models.Tier `json:"tier"`
	Price  float64     `json:"price"`
	Blurbs []string    `json:"features"`
}

var plans = []Plan{
	{Tier: models.TierFree, Price: 0, Blurbs: []string{
		"Basic price lookup",
		"Limited history (30 days)",
	}},
	{Tier: models.TierPremium, Price: 9.99, Blurbs: []string{
		"Dividend safety scoring",
		"Advanced analytics",
		"Capture strategy",
		"Tax calculator",
	}},
	{Tier: models.TierElite, Price: 29.99, Blurbs: []string{
		"All Premium features",
		"Portfolio tracking",
		"Alerts",
		"Unlimited API calls",
	}},
}

// Plans returns the plan catalog from lowest to highest tier.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		p.Blurbs = append([]string(nil), p.Blurbs...)
		out[i] = p
	}
	return out
}

// PriceOf returns the monthly price of tier. Unknown tiers report ok=false.
func PriceOf(tier models.Tier) (float64, bool) {
	for _, p := range plans {
		if p.Tier == tier {
			return p.Price, true
		}
	}
	return 0, false
}
