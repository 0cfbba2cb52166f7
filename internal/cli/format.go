package cli

import (
	"fmt"
	"time"
)

// FormatUSD formats an amount as dollars with two decimals.
func FormatUSD(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-$%.2f", -amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatPercent formats a percentage with two decimals.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatSignedPercent formats a percentage with an explicit sign.
func FormatSignedPercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return FormatPercent(pct)
}

// FormatYield formats an estimated yield, or "-" when the price was unknown.
func FormatYield(pct float64, known bool) string {
	if !known {
		return "-"
	}
	return FormatPercent(pct)
}

// FormatDate formats a date as YYYY-MM-DD, or "-" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// FormatTimestamp formats a quote timestamp.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
