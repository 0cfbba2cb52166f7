package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"divtrack/internal/health"
	"divtrack/internal/models"
)

func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newHealthCmd(app))
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "quote <ticker>",
		Aliases: []string{"q"},
		Short:   "Show price, history and dividends for a ticker",
		Long: `Fetch the current quote, recent price history and recent dividends for a
ticker in one cycle. Either all three are shown or the command fails.`,
		Example: `  divtrack quote AAPL
  divtrack quote ko --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Init(ctx); err != nil {
				return err
			}
			snap, err := app.Market.Load(ctx, models.NormalizeTicker(args[0]))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(snapshotJSON(snap))
			}
			renderSnapshot(output, snap)
			return nil
		},
	}
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the dividend tracker service and local session store",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Init(ctx); err != nil {
				return err
			}
			report := app.Health.Run(ctx)

			if output.IsJSON() {
				if err := output.JSON(report); err != nil {
					return err
				}
			} else {
				table := NewTable(output, "Component", "Status", "Latency", "Detail")
				for _, c := range report.Components {
					detail := c.Message
					if detail == "" && c.Details != nil {
						detail = fmt.Sprintf("provider=%v caching=%v", c.Details["provider"], c.Details["caching"])
					}
					table.AddRow(c.Name, healthStatus(output, c.Status), c.Latency.Round(time.Millisecond).String(), detail)
				}
				table.Render()
			}

			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("unhealthy")
			}
			return nil
		},
	}
}

func healthStatus(output *Output, s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return output.Green(string(s))
	case health.StatusDegraded:
		return output.Yellow(string(s))
	default:
		return output.Red(string(s))
	}
}
