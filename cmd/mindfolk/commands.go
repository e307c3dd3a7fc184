package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/persistence/sqlite/migration"
)

// operator is the principal used for administrative commands run on the host.
var operator = application.Principal{AccountID: "cli", Role: application.RoleAdmin}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			status, err := rt.storage.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printMigrationStatus(out io.Writer, status *migration.MigrationStatus) {
	fmt.Fprintf(out, "schema version %s (%d pending)\n", status.CurrentVersion, status.PendingCount)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tCHECKSUM")
	for _, applied := range status.AppliedMigrations {
		fmt.Fprintf(w, "%s\t%s\t%.12s\n", applied.Version, applied.AppliedAt.UTC().Format(time.RFC3339), applied.Checksum)
	}
	_ = w.Flush()
}

type accountFlags struct {
	email    string
	name     string
	role     string
	timeZone string
	password string
}

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	accounts := &cobra.Command{
		Use:   "accounts",
		Short: "Manage client, therapist and admin accounts",
	}

	flags := &accountFlags{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			account, err := newServices(rt, nil).accounts.CreateAccount(cmd.Context(), application.CreateAccountParams{
				Principal: operator,
				Input: application.AccountInput{
					Email:       flags.email,
					DisplayName: flags.name,
					Role:        application.Role(flags.role),
					TimeZone:    flags.timeZone,
					Password:    flags.password,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s account %s (%s)\n", account.Role, account.ID, account.Email)
			return nil
		},
	}
	create.Flags().StringVar(&flags.email, "email", "", "login email")
	create.Flags().StringVar(&flags.name, "name", "", "display name shown to counterparties")
	create.Flags().StringVar(&flags.role, "role", string(application.RoleClient), "client, therapist or admin")
	create.Flags().StringVar(&flags.timeZone, "tz", "", "IANA time zone used for local session times")
	create.Flags().StringVar(&flags.password, "password", "", "initial password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			all, err := newServices(rt, nil).accounts.ListAccounts(cmd.Context(), operator)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tEMAIL\tNAME")
			for _, account := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", account.ID, account.Role, account.Email, account.DisplayName)
			}
			return w.Flush()
		},
	}

	accounts.AddCommand(create, list)
	return accounts
}

func newRemindersCommand(opts *rootOptions) *cobra.Command {
	var (
		accountID string
		horizon   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Print current reminders and countdowns for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			account, err := newAccountStore(rt.storage).GetAccount(ctx, accountID)
			if err != nil {
				return fmt.Errorf("look up account %s: %w", accountID, err)
			}
			principal := application.Principal{AccountID: account.ID, Role: account.Role}
			svc := newServices(rt, nil)

			view, err := svc.reminders.OpenView(ctx, principal)
			if err != nil {
				return err
			}
			defer func() { _ = svc.reminders.CloseView(ctx, principal, view.ID) }()

			reminders, err := svc.reminders.Reminders(ctx, principal, view.ID)
			if err != nil {
				return err
			}
			upcoming, err := svc.sessions.ListUpcoming(ctx, application.ListUpcomingParams{Principal: principal, Horizon: horizon})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reminders for %s\n", account.DisplayName)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tWITH\tTYPE\tSTARTS\tURGENT\tIMMEDIATE")
			for _, r := range reminders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n", r.SessionID, r.CounterpartyName, r.Type, countdown.Phrase(r.TimeUntilSession), r.IsUrgent, r.IsImmediate)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out, "\nUpcoming sessions")
			w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tWITH\tSTATE\tCOUNTDOWN\tACTION")
			for _, session := range upcoming {
				described, err := svc.reminders.Describe(ctx, principal, session)
				if err != nil {
					return err
				}
				c := described.Countdown
				text := c.Text
				if c.LocalTime != "" {
					text += " (" + c.LocalTime + ")"
				}
				action := string(c.Action)
				if action == "" {
					action = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", session.ID, described.Counterparty, c.State, text, action)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account whose reminders are printed")
	cmd.Flags().DurationVar(&horizon, "horizon", 24*time.Hour, "how far ahead to list upcoming sessions")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
