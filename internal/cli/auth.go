package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"divtrack/internal/entitlement"
	"divtrack/internal/errors"
	"divtrack/internal/models"
	"divtrack/internal/security"
)

const commandTimeout = 30 * time.Second

func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app, false))
	rootCmd.AddCommand(newLoginCmd(app, true))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newWhoamiCmd(app))
}

func newLoginCmd(app *App, register bool) *cobra.Command {
	use, short := "login <email>", "Login to the dividend tracker"
	if register {
		use, short = "register <email>", "Create an account and login"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The password is read from --password or prompted for on stdin. The session
token is kept in the configured token store until logout.`,
		Example: `  divtrack login jane@example.com
  echo "$PASS" | divtrack register jane@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}

			creds, err := security.ValidateCredentials(args[0], password)
			if err != nil {
				return err
			}

			if err := app.Init(ctx); err != nil {
				return err
			}

			login := app.Session.Login
			if register {
				login = app.Session.Register
			}
			sess, err := login(ctx, creds.Email, creds.Password)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(sessionJSON(sess))
			}
			output.Success("✓ Logged in as %s", sess.Email())
			output.Printf("  Plan: %s\n", sess.Tier)
			return nil
		},
	}

	cmd.Flags().String("password", "", "account password (prompted when omitted)")
	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.NewValidationError("password", "", "password is required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Init(ctx); err != nil {
				return err
			}
			// Logout only needs the stored token, not a round trip to auth/me.
			app.Session.Logout(ctx)

			if output.IsJSON() {
				return output.JSON(map[string]bool{"logged_out": true})
			}
			output.Success("✓ Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account and plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := app.Restore(ctx); err != nil {
				return err
			}
			sess := app.Session.Current()

			if output.IsJSON() {
				return output.JSON(sessionJSON(sess))
			}
			if !sess.IsAuthenticated() {
				output.Warning("Not logged in")
				output.Dim("Plan: %s", sess.Tier)
				return nil
			}
			output.Bold(sess.Email())
			output.Printf("  Plan:     %s\n", sess.Tier)
			features := entitlement.Features(sess.Tier).List()
			names := make([]string, len(features))
			for i, f := range features {
				names[i] = string(f)
			}
			output.Printf("  Features: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

type sessionView struct {
	Authenticated bool        `json:"authenticated"`
	Email         string      `json:"email,omitempty"`
	Tier          models.Tier `json:"tier"`
}

func sessionJSON(s models.Session) sessionView {
	return sessionView{Authenticated: s.IsAuthenticated(), Email: s.Email(), Tier: s.Tier}
}
