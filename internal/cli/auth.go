package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youthcouncil/portal/internal/client/session"
	"github.com/youthcouncil/portal/internal/client/workflow"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:     "login",
		Aliases: []string{"signin"},
		Short:   "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			addr, err := a.prompt(out, "Email", email)
			if err != nil {
				return err
			}
			secret, err := a.prompt(out, "Password", password)
			if err != nil {
				return err
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			p, err := workflow.Login(ctx, a.api, a.mgr, addr, secret)
			if err != nil {
				return userError(err)
			}

			name := strings.TrimSpace(p.Name)
			if name == "" {
				name = p.Email
			}
			if name == "" {
				name = "user " + p.ID
			}
			fmt.Fprintf(out, "Signed in as %s.\n", name)
			printRole(out, a.mgr.Snapshot())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.mgr.Snapshot().Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if err := workflow.Logout(ctx, a.api, a.mgr, a.log); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and active role",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if remote && a.mgr.Snapshot().Authenticated() {
				ctx, cancel := a.ctx(cmd)
				defer cancel()
				if _, err := a.api.Me(ctx); err != nil {
					// a 401 has already cleared the session at this point
					a.log.Debug().Err(err).Msg("session check failed")
				}
			}

			snap := a.mgr.Snapshot()
			if !snap.Authenticated() {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			p := snap.Principal
			fmt.Fprintf(out, "ID:        %s\n", p.ID)
			fmt.Fprintf(out, "Type:      %s\n", p.UserType)
			if p.Name != "" {
				fmt.Fprintf(out, "Name:      %s\n", p.Name)
			}
			if p.Email != "" {
				fmt.Fprintf(out, "Email:     %s\n", p.Email)
			}
			fmt.Fprintf(out, "Verified:  %t\n", p.Verified)
			fmt.Fprintf(out, "Roles:     %s\n", strings.Join(p.Roles, ", "))
			printRole(out, snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "check", false, "Confirm the session with the server first")
	return cmd
}

func newRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role [name]",
		Short: "List roles or switch the active role",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			snap := a.mgr.Snapshot()
			if !snap.Authenticated() {
				return errors.New("not signed in")
			}

			if len(args) == 0 {
				for _, r := range snap.Roles() {
					marker := " "
					if r == snap.ActiveRole {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, r)
				}
				return nil
			}

			if err := a.mgr.SetActiveRole(args[0]); err != nil {
				if errors.Is(err, session.ErrRoleNotPermitted) {
					return fmt.Errorf("you do not hold the role %q", args[0])
				}
				return err
			}
			printRole(out, a.mgr.Snapshot())
			return nil
		},
	}
}

func printRole(w io.Writer, snap session.Snapshot) {
	if snap.ActiveRole == "" {
		fmt.Fprintln(w, "No role assigned yet; ask a super official to assign one.")
		return
	}
	fmt.Fprintf(w, "Active role: %s\n", snap.ActiveRole)
}
