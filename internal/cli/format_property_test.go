package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var usdPattern = regexp.MustCompile(`^-?\$\d+\.\d{2}$`)

// FormatUSD keeps two decimals and round-trips to within half a cent.
func TestFormatUSDProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatUSD is parseable with two decimals", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatUSD(amount)
			if !usdPattern.MatchString(formatted) {
				t.Logf("unexpected format for %f: %s", amount, formatted)
				return false
			}
			value, err := strconv.ParseFloat(strings.Replace(formatted, "$", "", 1), 64)
			if err != nil {
				return false
			}
			return math.Abs(value-amount) <= 0.005+1e-9
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatSignedPercent carries a sign for positives", prop.ForAll(
		func(pct float64) bool {
			formatted := FormatSignedPercent(pct)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			if pct > 0 {
				return strings.HasPrefix(formatted, "+")
			}
			return !strings.HasPrefix(formatted, "+")
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}

func TestFormatYield(t *testing.T) {
	tests := []struct {
		pct   float64
		known bool
		want  string
	}{
		{0.5, true, "0.50%"},
		{3.14159, true, "3.14%"},
		{0, false, "-"},
		{12, false, "-"},
	}
	for _, tt := range tests {
		if got := FormatYield(tt.pct, tt.known); got != tt.want {
			t.Errorf("FormatYield(%v, %v) = %q, want %q", tt.pct, tt.known, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != "-" {
		t.Errorf("zero date = %q", got)
	}
	d := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	if got := FormatDate(d); got != "2024-03-15" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatTimestamp(d); got != "2024-03-15 10:30:00" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
