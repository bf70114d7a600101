package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/client/workflow"
)

func newRegisterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
	}
	cmd.AddCommand(newRegisterOfficialCmd(a), newRegisterYouthCmd(a))
	return cmd
}

func newRegisterOfficialCmd(a *app) *cobra.Command {
	var (
		profile workflow.OfficialProfile
		creds   workflow.Credentials
	)

	cmd := &cobra.Command{
		Use:   "official",
		Short: "Register an official account",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := workflow.NewWizard(a.api, a.policy)
			if err := w.SubmitProfile(profile); err != nil {
				return userError(err)
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if err := w.Submit(ctx, creds); err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Check your inbox to verify the address, then run `portalctl login`.\n", profile.Email)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile.FirstName, "first-name", "", "First name")
	f.StringVar(&profile.LastName, "last-name", "", "Last name")
	f.StringVar(&profile.Email, "email", "", "Email address")
	f.StringVar(&profile.Position, "position", "", "Council position")
	f.StringVar(&creds.Password, "password", "", "Password")
	f.StringVar(&creds.ConfirmPassword, "confirm-password", "", "Password again")
	f.BoolVar(&creds.AcceptTerms, "accept-terms", false, "Accept the terms of use")
	return cmd
}

func newRegisterYouthCmd(a *app) *cobra.Command {
	var (
		form       workflow.YouthSignup
		attachment string
	)

	cmd := &cobra.Command{
		Use:   "youth",
		Short: "Register as a youth member",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if attachment != "" {
				file, err := os.Open(attachment)
				if err != nil {
					return fmt.Errorf("open attachment: %w", err)
				}
				defer file.Close()
				form.Attachment = &transport.FilePart{Name: filepath.Base(attachment), Body: file}
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			res, err := workflow.RegisterYouth(ctx, a.api, form, a.policy, a.log)
			if err != nil {
				return userError(err)
			}

			fmt.Fprintf(out, "Registered %s.\n", form.Email)
			if res.VerificationSent {
				fmt.Fprintln(out, "A verification email is on its way.")
			} else {
				fmt.Fprintf(out, "Could not request the verification email: %s\n", transport.UserMessage(res.VerificationError))
				fmt.Fprintf(out, "Retry with `portalctl send-verification %s`.\n", form.Email)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "First name")
	f.StringVar(&form.MiddleName, "middle-name", "", "Middle name")
	f.StringVar(&form.LastName, "last-name", "", "Last name")
	f.StringVar(&form.Email, "email", "", "Email address")
	f.StringVar(&form.Password, "password", "", "Password")
	f.StringVar(&form.ConfirmPassword, "confirm-password", "", "Password again")
	f.StringVar(&form.Purok, "purok", "", "Purok")
	f.StringVar(&form.Birthdate, "birthdate", "", "Birthdate (YYYY-MM-DD)")
	f.StringVar(&form.Sex, "sex", "", "Sex")
	f.StringVar(&form.CivilStatus, "civil-status", "", "Civil status")
	f.StringVar(&form.ContactNumber, "contact-number", "", "Contact number")
	f.StringVar(&form.YouthClassification, "youth-classification", "", "Youth classification")
	f.StringVar(&form.EducationalBackground, "educational-background", "", "Educational background")
	f.StringVar(&form.WorkStatus, "work-status", "", "Work status")
	f.BoolVar(&form.RegisteredVoter, "registered-voter", false, "Registered voter")
	f.BoolVar(&form.VotedLastElection, "voted-last-election", false, "Voted in the last election")
	f.StringVar(&attachment, "attachment", "", "Supporting document (PDF, JPEG or PNG)")
	return cmd
}
