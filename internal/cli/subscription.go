package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"divtrack/internal/entitlement"
	"divtrack/internal/errors"
	"divtrack/internal/models"
)

func addSubscriptionCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPlansCmd())
	rootCmd.AddCommand(newFeaturesCmd(app))
	rootCmd.AddCommand(newUpgradeCmd(app))
	rootCmd.AddCommand(newPayCmd(app))
}

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			plans := entitlement.Plans()
			if output.IsJSON() {
				return output.JSON(plans)
			}
			for _, p := range plans {
				price := "Free"
				if p.Price > 0 {
					price = FormatUSD(p.Price) + "/month"
				}
				output.Bold("%s  %s", strings.ToUpper(string(p.Tier)), price)
				for _, b := range p.Blurbs {
					output.Printf("  • %s\n", b)
				}
				output.Println()
			}
			output.Dim("Upgrade with 'divtrack pay <tier>' or 'divtrack upgrade <tier>'")
			return nil
		},
	}
}

func newFeaturesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "features [tier]",
		Short: "Show which features a tier unlocks",
		Long:  "Show the features of the given tier, or of the current session when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var tier models.Tier
			if len(args) == 1 {
				t, ok := models.ParseTier(args[0])
				if !ok {
					return errors.NewValidationError("tier", args[0], "unknown tier "+args[0])
				}
				tier = t
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
				defer cancel()
				if err := app.Restore(ctx); err != nil {
					return err
				}
				tier = app.Session.Current().Tier
			}

			allowed := entitlement.Features(tier)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"tier": tier, "features": allowed.List()})
			}

			output.Bold("Plan: %s", tier)
			table := NewTable(output, "Feature", "Available")
			for _, f := range entitlement.Features(models.TierElite).List() {
				mark := output.Red("no")
				if allowed.Has(f) {
					mark = output.Green("yes")
				}
				table.AddRow(string(f), mark)
			}
			table.Render()
			return nil
		},
	}
}

func newUpgradeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <tier>",
		Short: "Change the subscription tier",
		Long: `Ask the service to move the account to another tier. The local plan changes
as soon as the service accepts.`,
		Example: `  divtrack upgrade premium`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Restore(ctx); err != nil {
				return err
			}
			tier := models.Tier(strings.ToLower(strings.TrimSpace(args[0])))

			prev := app.Session.Current().Tier
			sess, err := app.Session.UpgradeSubscription(ctx, tier)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(sessionJSON(sess))
			}
			if prev == sess.Tier {
				output.Info("Already on the %s plan", sess.Tier)
				return nil
			}
			if entitlement.Compare(sess.Tier, prev) < 0 {
				output.Warning("Plan downgraded: %s → %s", prev, sess.Tier)
				return nil
			}
			output.Success("✓ Plan upgraded: %s → %s", prev, sess.Tier)
			return nil
		},
	}
}

func newPayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay <tier>",
		Short: "Start a crypto checkout for a plan",
		Long: `Request a one-time crypto payment for a plan. The wallet address and amount
are shown; settlement is not tracked and the plan does not change until the
service records the payment.`,
		Example: `  divtrack pay premium
  divtrack pay elite --crypto bitcoin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Restore(ctx); err != nil {
				return err
			}
			crypto, _ := cmd.Flags().GetString("crypto")
			tier := models.Tier(strings.ToLower(strings.TrimSpace(args[0])))

			handle, err := app.Payments.Initiate(ctx, tier, models.CryptoType(strings.ToLower(crypto)))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(handle)
			}
			output.Success("✓ Payment requested")
			output.Printf("  Plan:        %s\n", handle.Tier)
			output.Printf("  Amount:      %s in %s\n", FormatUSD(handle.Amount), handle.CryptoType)
			output.Printf("  Send to:     %s\n", handle.WalletAddress)
			output.Printf("  Transaction: %s\n", handle.TransactionID)
			output.Warning("Status: %s", handle.Status)
			return nil
		},
	}

	cmd.Flags().String("crypto", string(models.CryptoEthereum), "payment currency (ethereum or bitcoin)")
	return cmd
}
