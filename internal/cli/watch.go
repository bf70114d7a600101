package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/youthcouncil/portal/internal/client/guard"
	"github.com/youthcouncil/portal/internal/client/session"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session changes made by other portalctl processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cancel := a.mgr.Subscribe(func(s session.Snapshot) {
				printSnapshot(out, s)
			})
			defer cancel()

			feed := session.NewFileWatchFeed(a.durable.Path(), a.log)
			if err := a.mgr.Watch(ctx, feed); err != nil {
				return fmt.Errorf("watch session: %w", err)
			}

			printSnapshot(out, a.mgr.Snapshot())
			<-ctx.Done()
			return nil
		},
	}
}

func printSnapshot(w io.Writer, s session.Snapshot) {
	if !s.Authenticated() {
		fmt.Fprintln(w, "signed out")
		return
	}
	fmt.Fprintf(w, "signed in as %s (%s), active role %q\n", s.Principal.ID, s.Principal.UserType, s.ActiveRole)
}

func newRouteCmd(a *app) *cobra.Command {
	var (
		guestOnly bool
		allowed   []string
	)

	cmd := &cobra.Command{
		Use:   "route <path>",
		Short: "Show whether a screen would render for the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.mgr.Snapshot()
			var d guard.Decision
			if guestOnly {
				d = guard.GuestOnly(snap)
			} else {
				d = guard.Authenticated(snap, args[0], allowed...)
			}

			out := cmd.OutOrStdout()
			if d.Action == guard.Render {
				fmt.Fprintf(out, "render %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "redirect %s", d.To)
			if d.From != "" {
				fmt.Fprintf(out, " (from %s)", d.From)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&guestOnly, "guest", false, "Evaluate the guest-only guard (login and registration screens)")
	cmd.Flags().StringSliceVar(&allowed, "allow", nil, "Roles allowed on the screen")
	return cmd
}
