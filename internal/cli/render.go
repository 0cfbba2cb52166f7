package cli

import (
	"divtrack/internal/analytics"
	"divtrack/internal/models"
)

// historyRows is how many closes the text view shows; JSON has them all.
const historyRows = 10

func renderSnapshot(output *Output, snap models.MarketSnapshot) {
	output.Bold("%s  %s", snap.Ticker, FormatUSD(snap.Quote.Price))
	output.Dim("  source %s, as of %s", snap.Quote.Source, FormatTimestamp(snap.Quote.Timestamp))

	if n := len(snap.History); n > 1 {
		first, last := snap.History[0].Close, snap.History[n-1].Close
		if first > 0 {
			change := (last - first) / first * 100
			text := FormatSignedPercent(change)
			if change >= 0 {
				text = output.Green(text)
			} else {
				text = output.Red(text)
			}
			output.Printf("  %d-day change: %s\n", n, text)
		}
	}
	output.Println()

	if len(snap.History) > 0 {
		output.Bold("Price History")
		table := NewTable(output, "Date", "Close")
		start := len(snap.History) - historyRows
		if start < 0 {
			start = 0
		}
		for _, p := range snap.History[start:] {
			table.AddRow(FormatDate(p.Date), FormatUSD(p.Close))
		}
		table.Render()
		output.Println()
	}

	output.Bold("Dividends")
	if len(snap.Dividends) == 0 {
		output.Dim("  No dividend history")
		return
	}
	table := NewTable(output, "Date", "Amount", "Est. Yield")
	for _, d := range snap.DividendYields() {
		table.AddRow(FormatDate(d.Date), FormatUSD(d.Amount), FormatYield(d.YieldPercent, d.Known))
	}
	table.Render()
	output.Dim("  Yield estimated against the current price")
}

func renderSafety(output *Output, res analytics.SafetyResult) {
	output.Bold("Dividend Safety  %s", res.Ticker)
	if res.State != analytics.StateReady || res.Value == nil {
		output.Locked("Safety score", res.State)
		return
	}
	s := res.Value
	verdict := output.Green("safe")
	if !s.Safe {
		verdict = output.Red("at risk")
	}
	output.Printf("  Grade: %s   Score: %d/100   %s\n", output.Grade(s.Grade), s.Score, verdict)
	if s.Label != "" {
		output.Printf("  %s\n", s.Label)
	}
}

func renderCapture(output *Output, res analytics.CaptureResult) {
	output.Bold("Dividend Capture  %s", res.Ticker)
	if res.State != analytics.StateReady || res.Value == nil {
		output.Locked("Capture strategy", res.State)
		return
	}
	c := res.Value
	rec := output.Green("recommended")
	if !c.Recommended {
		rec = output.Yellow("not recommended")
	}
	qualified := "non-qualified"
	if c.IsQualifiedDividend {
		qualified = "qualified"
	}
	output.Printf("  %s   Risk: %s   Hold: %d days\n", rec, output.Risk(c.RiskLevel), c.HoldingPeriodDays)
	output.Printf("  Yield: %s pre-tax, %s after %s tax (%s)\n",
		FormatPercent(c.DividendYieldPretax), FormatPercent(c.DividendYieldAftertax),
		FormatPercent(c.TaxRate), qualified)
	output.Printf("  Expected return: %s\n", FormatSignedPercent(c.ExpectedReturnPct))

	table := NewTable(output, "Scenario", "Price", "Total Return")
	for _, row := range []struct {
		name string
		s    models.Scenario
	}{
		{"Bullish", c.Scenarios.Bullish},
		{"Neutral", c.Scenarios.Neutral},
		{"Bearish", c.Scenarios.Bearish},
	} {
		table.AddRow(row.name, FormatUSD(row.s.FuturePrice), FormatSignedPercent(row.s.TotalReturnPct))
	}
	table.Render()
}

type snapshotView struct {
	models.MarketSnapshot
	Yields []models.DividendYield `json:"yields"`
}

func snapshotJSON(snap models.MarketSnapshot) snapshotView {
	return snapshotView{MarketSnapshot: snap, Yields: snap.DividendYields()}
}

type resultView struct {
	State      analytics.State `json:"state"`
	Ticker     string          `json:"ticker"`
	Tier       models.Tier     `json:"tier"`
	Value      interface{}     `json:"value,omitempty"`
	Generation uint64          `json:"generation"`
}

func safetyJSON(res analytics.SafetyResult) resultView {
	v := resultView{State: res.State, Ticker: res.Ticker, Tier: res.Tier, Generation: res.Generation}
	if res.Value != nil {
		v.Value = res.Value
	}
	return v
}

func captureJSON(res analytics.CaptureResult) resultView {
	v := resultView{State: res.State, Ticker: res.Ticker, Tier: res.Tier, Generation: res.Generation}
	if res.Value != nil {
		v.Value = res.Value
	}
	return v
}
