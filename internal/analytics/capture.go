package analytics

import (
	"context"

	"github.com/rs/zerolog"

	"divtrack/internal/api"
	"divtrack/internal/entitlement"
	"divtrack/internal/models"
)

// CaptureParams are the inputs of a capture strategy. Amounts and prices are
// sent as given, zero included. An empty date or a non-positive holding
// period takes the default.
type CaptureParams struct {
	ExDividendDate    string
	DividendAmount    float64
	CurrentPrice      float64
	HoldingPeriodDays int
}

// DefaultCaptureParams returns the inputs used when none are supplied.
func DefaultCaptureParams() CaptureParams {
	return CaptureParams{ExDividendDate: "2024-03-15", DividendAmount: 0.5, CurrentPrice: 100, HoldingPeriodDays: 60}
}

func (p CaptureParams) withDefaults() CaptureParams {
	d := DefaultCaptureParams()
	if p.ExDividendDate == "" {
		p.ExDividendDate = d.ExDividendDate
	}
	if p.HoldingPeriodDays <= 0 {
		p.HoldingPeriodDays = d.HoldingPeriodDays
	}
	return p
}

// CaptureParamsFromSnapshot overlays price and the latest dividend from snap
// onto the defaults.
func CaptureParamsFromSnapshot(snap models.MarketSnapshot) CaptureParams {
	p := DefaultCaptureParams()
	if snap.Quote.Price > 0 {
		p.CurrentPrice = snap.Quote.Price
	}
	if len(snap.Dividends) > 0 {
		latest := snap.Dividends[0]
		p.DividendAmount = latest.Amount
		if !latest.Date.IsZero() {
			p.ExDividendDate = latest.Date.Format("2006-01-02")
		}
	}
	return p
}

// CaptureResult is the outcome of a capture strategy request.
type CaptureResult = Result[models.CaptureStrategy]

// CaptureRequester fetches dividend capture strategies for entitled tiers.
type CaptureRequester struct {
	remote Remote
	*gated[models.CaptureStrategy]
}

// NewCaptureRequester creates a CaptureRequester.
func NewCaptureRequester(remote Remote, logger zerolog.Logger) *CaptureRequester {
	return &CaptureRequester{
		remote: remote,
		gated:  newGated[models.CaptureStrategy](entitlement.CaptureStrategy, logger),
	}
}

// Request asks for a capture strategy on ticker. Locked tiers make no remote
// call. Failures return StateEmpty, never an error.
func (r *CaptureRequester) Request(ctx context.Context, ticker string, tier models.Tier, params CaptureParams) CaptureResult {
	ticker = models.NormalizeTicker(ticker)
	p := params.withDefaults()

	return r.run(ctx, ticker, tier, func(ctx context.Context) (models.CaptureStrategy, error) {
		return r.remote.CaptureStrategy(ctx, api.CaptureRequest{
			Ticker:            ticker,
			ExDividendDate:    p.ExDividendDate,
			DividendAmount:    p.DividendAmount,
			CurrentPrice:      p.CurrentPrice,
			HoldingPeriodDays: p.HoldingPeriodDays,
		})
	})
}
