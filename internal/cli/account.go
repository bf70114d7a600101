package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youthcouncil/portal/internal/client/workflow"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify an email address with the emailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			msg, err := workflow.VerifyEmail(ctx, a.api, args[0])
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newSendVerificationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send-verification <email>",
		Short: "Send the verification email again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			msg, err := a.api.SendVerification(ctx, args[0])
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newForgotCmd(a *app) *cobra.Command {
	var password, confirm string

	cmd := &cobra.Command{
		Use:   "forgot <email>",
		Short: "Request a password reset email",
		Long: "Request a password reset email. When the server echoes the reset token " +
			"(development only) and --password is given, the reset is completed right away.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			flow := workflow.NewResetFlow(a.api, a.policy)
			if err := flow.SubmitEmail(ctx, args[0]); err != nil {
				return userError(err)
			}
			fmt.Fprintln(out, flow.Message)

			if flow.Token == "" || password == "" {
				if flow.Token != "" {
					fmt.Fprintf(out, "Reset token: %s\n", flow.Token)
				}
				return nil
			}
			if err := flow.SubmitNewPassword(ctx, password, confirm); err != nil {
				return userError(err)
			}
			fmt.Fprintln(out, flow.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password, used when the token is echoed")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "New password again")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var password, confirm string

	cmd := &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password with the emailed reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			pw, err := a.prompt(out, "New password", password)
			if err != nil {
				return err
			}
			again, err := a.prompt(out, "Confirm password", confirm)
			if err != nil {
				return err
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			flow := workflow.ResumeReset(a.api, a.policy, args[0])
			if err := flow.SubmitNewPassword(ctx, pw, again); err != nil {
				return userError(err)
			}
			fmt.Fprintln(out, flow.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "New password again (prompted if omitted)")
	return cmd
}

func newPasswdCmd(a *app) *cobra.Command {
	var current, password, confirm string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cur, err := a.prompt(out, "Current password", current)
			if err != nil {
				return err
			}
			pw, err := a.prompt(out, "New password", password)
			if err != nil {
				return err
			}
			again, err := a.prompt(out, "Confirm password", confirm)
			if err != nil {
				return err
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			msg, err := workflow.ChangePassword(ctx, a.api, a.policy, cur, pw, again)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(out, msg)

			// the server revoked every token issued before the change
			if err := a.mgr.SetPrincipal(nil); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(out, "Signed out. Sign in again with the new password.")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current-password", "", "Current password (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "New password again (prompted if omitted)")
	return cmd
}

func newAssignRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-roles <user-id> <role>...",
		Short: "Set an official's roles (super official only)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			p, err := a.api.AssignRoles(ctx, args[0], args[1:])
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s now holds: %v\n", p.ID, p.Roles)

			// the account's earlier tokens were revoked with the old role set
			if self := a.mgr.Principal(); self != nil && self.ID == p.ID {
				if err := a.mgr.SetPrincipal(nil); err != nil {
					return fmt.Errorf("clear session: %w", err)
				}
				fmt.Fprintln(out, "Signed out. Sign in again to use the new roles.")
				return nil
			}
			fmt.Fprintln(out, "The account must sign in again to use the new roles.")
			return nil
		},
	}
}
