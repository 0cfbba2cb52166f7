// Package entitlement maps subscription tiers to the features they unlock.
package entitlement

import (
	"sort"

	"divtrack/internal/models"
)

// Feature names a gated capability.
type Feature string

const (
	BasicQuote      Feature = "basic_quote"
	BasicHistory    Feature = "basic_history"
	SafetyScore     Feature = "safety_score"
	CaptureStrategy Feature = "capture_strategy"
	CryptoPayment   Feature = "crypto_payment"
	Portfolio       Feature = "portfolio"
	Alerts          Feature = "alerts"
)

// Each tier unlocks its own features plus everything below it.
var tierFeatures = map[models.Tier][]Feature{
	models.TierFree:    {BasicQuote, BasicHistory},
	models.TierPremium: {SafetyScore, CaptureStrategy, CryptoPayment},
	models.TierElite:   {Portfolio, Alerts},
}

// FeatureSet is the set of features available to a tier.
type FeatureSet map[Feature]bool

// Has reports whether f is in the set.
func (s FeatureSet) Has(f Feature) bool {
	return s[f]
}

// List returns the features in a stable order.
func (s FeatureSet) List() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Features returns the feature set for tier. Unknown tiers get the free set.
// The set is rebuilt on every call so callers may mutate it freely.
func Features(tier models.Tier) FeatureSet {
	if _, ok := tierFeatures[tier]; !ok {
		tier = models.TierFree
	}

	set := make(FeatureSet)
	for _, t := range models.Tiers {
		for _, f := range tierFeatures[t] {
			set[f] = true
		}
		if t == tier {
			break
		}
	}
	return set
}

// Allows reports whether tier may use feature.
func Allows(tier models.Tier, feature Feature) bool {
	return Features(tier).Has(feature)
}

// Compare orders tiers: negative when a < b, zero when equal, positive when
// a > b. Unknown tiers compare as free.
func Compare(a, b models.Tier) int {
	return a.Rank() - b.Rank()
}
