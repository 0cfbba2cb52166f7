// Package cli provides the command-line interface for the dividend tracker.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"divtrack/internal/analytics"
	"divtrack/internal/models"
)

// Output handles formatted output for the CLI. It is safe for concurrent use.
type Output struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool

	green, red, yellow, cyan, bold, dim *color.Color
}

// NewOutput creates a new Output writing to the command's stdout.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return newOutput(cmd.OutOrStdout(), jsonMode, !jsonMode && !color.NoColor)
}

func newOutput(w io.Writer, jsonMode, colorEnabled bool) *Output {
	o := &Output{
		writer:   w,
		jsonMode: jsonMode,
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		yellow:   color.New(color.FgYellow),
		cyan:     color.New(color.FgCyan),
		bold:     color.New(color.Bold),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{o.green, o.red, o.yellow, o.cyan, o.bold, o.dim} {
		if colorEnabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return o
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) { o.line(o.green, format, args...) }

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) { o.line(o.red, format, args...) }

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) { o.line(o.yellow, format, args...) }

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) { o.line(o.cyan, format, args...) }

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) { o.line(o.bold, format, args...) }

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) { o.line(o.dim, format, args...) }

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.writer, c.Sprintf(format, args...))
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.green.Sprint(text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.red.Sprint(text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.yellow.Sprint(text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.dim.Sprint(text) }

// Grade colours a safety grade: A/B green, C yellow, D/F red.
func (o *Output) Grade(g models.Grade) string {
	switch g {
	case models.GradeA, models.GradeB:
		return o.Green(string(g))
	case models.GradeC:
		return o.Yellow(string(g))
	default:
		return o.Red(string(g))
	}
}

// Risk colours a capture strategy risk level.
func (o *Output) Risk(r models.RiskLevel) string {
	switch r {
	case models.RiskLow:
		return o.Green(string(r))
	case models.RiskMedium:
		return o.Yellow(string(r))
	default:
		return o.Red(string(r))
	}
}

// Locked prints the upsell line for a gated feature.
func (o *Output) Locked(feature string, state analytics.State) {
	if state == analytics.StateLocked {
		o.Warning("%s requires a premium plan (see 'divtrack plans')", feature)
		return
	}
	o.Dim("%s unavailable right now", feature)
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(stripANSI(h))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(stripANSI(cell)) > widths[i] {
				widths[i] = len(stripANSI(cell))
			}
		}
	}

	t.output.Println(t.output.bold.Sprint(t.pad(t.headers, widths)))
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	t.output.Println(t.output.DimText(strings.Join(seps, "  ")))
	for _, row := range t.rows {
		t.output.Println(t.pad(row, widths))
	}
}

func (t *Table) pad(cells []string, widths []int) string {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padding := widths[i] - len(stripANSI(cell))
		if padding < 0 {
			padding = 0
		}
		parts = append(parts, cell+strings.Repeat(" ", padding))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
