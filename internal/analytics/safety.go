package analytics

import (
	"context"

	"github.com/rs/zerolog"

	"divtrack/internal/api"
	"divtrack/internal/entitlement"
	"divtrack/internal/models"
)

// SafetyParams are the financial inputs of a safety score. They are sent as
// given; start from DefaultSafetyParams to fill unset inputs.
type SafetyParams struct {
	PayoutRatio    float64
	EarningsGrowth float64
	DebtToEquity   float64
	FCFTrend       float64
}

// DefaultSafetyParams returns the inputs used when none are supplied.
func DefaultSafetyParams() SafetyParams {
	return SafetyParams{PayoutRatio: 30, EarningsGrowth: 5, DebtToEquity: 0.5, FCFTrend: 5}
}

// SafetyResult is the outcome of a safety score request.
type SafetyResult = Result[models.SafetyScore]

// SafetyRequester fetches dividend safety scores for entitled tiers.
type SafetyRequester struct {
	remote Remote
	*gated[models.SafetyScore]
}

// NewSafetyRequester creates a SafetyRequester.
func NewSafetyRequester(remote Remote, logger zerolog.Logger) *SafetyRequester {
	return &SafetyRequester{
		remote: remote,
		gated:  newGated[models.SafetyScore](entitlement.SafetyScore, logger),
	}
}

// Request scores ticker. Locked tiers make no remote call. Failures return
// StateEmpty, never an error.
func (r *SafetyRequester) Request(ctx context.Context, ticker string, tier models.Tier, params SafetyParams) SafetyResult {
	ticker = models.NormalizeTicker(ticker)

	return r.run(ctx, ticker, tier, func(ctx context.Context) (models.SafetyScore, error) {
		return r.remote.SafetyScore(ctx, api.SafetyRequest{
			Ticker:         ticker,
			PayoutRatio:    params.PayoutRatio,
			EarningsGrowth: params.EarningsGrowth,
			DebtToEquity:   params.DebtToEquity,
			FCFTrend:       params.FCFTrend,
		})
	})
}
