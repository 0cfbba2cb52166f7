package models

// Grade is a dividend safety grade.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// SafetyScore is the remote dividend-sustainability assessment.
type SafetyScore struct {
	Grade Grade  `json:"grade"`
	Score int    `json:"score"`
	Label string `json:"label"`
	Safe  bool   `json:"safe"`
}

// RiskLevel is the capture strategy risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Scenario is one price outcome of a capture strategy.
type Scenario struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	FuturePrice    float64 `json:"future_price"`
}

// Scenarios groups the three modelled outcomes.
type Scenarios struct {
	Bullish Scenario `json:"bullish"`
	Neutral Scenario `json:"neutral"`
	Bearish Scenario `json:"bearish"`
}

// CaptureStrategy is the remote dividend-capture recommendation.
type CaptureStrategy struct {
	Recommended           bool      `json:"recommended"`
	RiskLevel             RiskLevel `json:"risk_level"`
	DividendYieldPretax   float64   `json:"dividend_yield_pretax"`
	DividendYieldAftertax float64   `json:"dividend_yield_aftertax"`
	TaxRate               float64   `json:"tax_rate"`
	IsQualifiedDividend   bool      `json:"is_qualified_dividend"`
	Scenarios             Scenarios `json:"scenarios"`
	ExpectedReturnPct     float64   `json:"expected_return_pct"`
	HoldingPeriodDays     int       `json:"holding_period_days"`
}
