package cli

import (
	"context"

	"github.com/spf13/cobra"

	"divtrack/internal/analytics"
	"divtrack/internal/entitlement"
	"divtrack/internal/models"
)

func addPremiumCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSafetyCmd(app))
	rootCmd.AddCommand(newCaptureCmd(app))
}

func newSafetyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safety <ticker>",
		Short: "Dividend safety score (premium)",
		Long: `Score how sustainable a ticker's dividend is from its payout ratio, earnings
growth, leverage and free cash flow trend. Requires a premium or elite plan.`,
		Example: `  divtrack safety KO
  divtrack safety T --payout-ratio 85 --debt-to-equity 1.4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Restore(ctx); err != nil {
				return err
			}

			var params analytics.SafetyParams
			params.PayoutRatio, _ = cmd.Flags().GetFloat64("payout-ratio")
			params.EarningsGrowth, _ = cmd.Flags().GetFloat64("earnings-growth")
			params.DebtToEquity, _ = cmd.Flags().GetFloat64("debt-to-equity")
			params.FCFTrend, _ = cmd.Flags().GetFloat64("fcf-trend")

			tier := app.Session.Current().Tier
			res := app.Safety.Request(ctx, models.NormalizeTicker(args[0]), tier, params)

			if output.IsJSON() {
				return output.JSON(safetyJSON(res))
			}
			renderSafety(output, res)
			return nil
		},
	}

	d := analytics.DefaultSafetyParams()
	cmd.Flags().Float64("payout-ratio", d.PayoutRatio, "dividend payout ratio (%)")
	cmd.Flags().Float64("earnings-growth", d.EarningsGrowth, "earnings growth (%)")
	cmd.Flags().Float64("debt-to-equity", d.DebtToEquity, "debt to equity ratio")
	cmd.Flags().Float64("fcf-trend", d.FCFTrend, "free cash flow trend (%)")
	return cmd
}

func newCaptureCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture <ticker>",
		Short: "Dividend capture strategy (premium)",
		Long: `Model buying before the ex-dividend date and selling after a holding period.
Price and dividend amount default to the ticker's current quote and latest
dividend. Requires a premium or elite plan.`,
		Example: `  divtrack capture AAPL
  divtrack capture KO --ex-date 2026-11-28 --amount 0.51 --hold 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Restore(ctx); err != nil {
				return err
			}
			ticker := models.NormalizeTicker(args[0])
			tier := app.Session.Current().Tier

			params := analytics.DefaultCaptureParams()
			// Market data is only worth fetching when the request will be made.
			if entitlement.Allows(tier, entitlement.CaptureStrategy) {
				if snap, err := app.Market.Load(ctx, ticker); err != nil {
					app.Logger.Warn().Err(err).Str("ticker", ticker).Msg("Market data unavailable, using default capture inputs")
				} else {
					params = analytics.CaptureParamsFromSnapshot(snap)
				}
			}
			flags := cmd.Flags()
			if flags.Changed("ex-date") {
				params.ExDividendDate, _ = flags.GetString("ex-date")
			}
			if flags.Changed("amount") {
				params.DividendAmount, _ = flags.GetFloat64("amount")
			}
			if flags.Changed("price") {
				params.CurrentPrice, _ = flags.GetFloat64("price")
			}
			if flags.Changed("hold") {
				params.HoldingPeriodDays, _ = flags.GetInt("hold")
			}

			res := app.Capture.Request(ctx, ticker, tier, params)

			if output.IsJSON() {
				return output.JSON(captureJSON(res))
			}
			renderCapture(output, res)
			return nil
		},
	}

	cmd.Flags().String("ex-date", "", "ex-dividend date (YYYY-MM-DD)")
	cmd.Flags().Float64("amount", 0, "dividend amount per share")
	cmd.Flags().Float64("price", 0, "purchase price per share")
	cmd.Flags().Int("hold", 0, "holding period in days (default 60)")
	return cmd
}
