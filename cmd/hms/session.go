package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/amoreldmija/hospital/app"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/guard"
	"github.com/amoreldmija/hospital/services/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openSession initialises a session store from the token file and keeps the
// file in step with every later change.
func (c *cli) openSession(ctx context.Context) (*session.Store, *app.Dependencies, error) {
	deps, err := c.dependencies(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	tokens := tokenFile{path: c.cfg.Client.SessionFile}
	store := session.NewStore(deps.Users, deps.Resolver, c.logger)
	if err := store.Init(ctx, tokens); err != nil {
		return nil, nil, err
	}
	// A rejected or orphaned token resolves anonymous; forget it.
	if err := tokens.Save(store.Token()); err != nil {
		return nil, nil, err
	}

	store.Subscribe(func(p *models.Principal) {
		if err := tokens.Save(store.Token()); err != nil {
			c.logger.Warn("session file not updated", zap.Error(err))
		}
	})
	return store, deps, nil
}

func (c *cli) signupCmd() *cobra.Command {
	var reg models.Registration

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a patient account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ValidateInput(reg); err != nil {
				return describe(err)
			}
			store, _, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			p, err := store.SignUp(cmd.Context(), reg)
			if err != nil {
				return describe(err)
			}
			return signedIn(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&reg.ContactNumber, "contact", "", "Contact number")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			p, err := store.SignIn(cmd.Context(), email, password)
			if err != nil {
				return describe(err)
			}
			return signedIn(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if store.Current().IsAnonymous() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			// The local session is gone either way; only report the provider.
			if err := store.SignOut(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: sign-out not confirmed:", describe(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			p := store.Current()
			if p.IsAnonymous() {
				fmt.Fprintln(cmd.OutOrStdout(), "anonymous")
				return nil
			}
			return writePrincipal(cmd.OutOrStdout(), p)
		},
	}
}

func (c *cli) canCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <resource> <operation>",
		Short: "Show what the guard does for an action in the current session",
		Example: `  hms can appointments approve
  hms can users delete`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseAction(args[0], args[1])
			if err != nil {
				return err
			}
			store, deps, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}

			g := guard.New(deps.Policy, c.logger, guard.WithSource(store), guard.WithRecorder(deps.Audit))
			res := g.Check(cmd.Context(), action)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", action, res.Outcome)
			if res.Reason != "" {
				fmt.Fprintf(out, "reason: %s\n", res.Reason)
			}
			return nil
		},
	}
}

func (c *cli) auditCmd() *cobra.Command {
	var (
		uid   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit entries (administrators)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, deps, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}

			action := models.Action(models.ResourceUsers, models.OpView)
			g := guard.New(deps.Policy, c.logger, guard.WithSource(store), guard.WithRecorder(deps.Audit))
			if res := g.Check(cmd.Context(), action); res.Outcome != guard.Proceed {
				return fmt.Errorf("%s: %s", res.Outcome, res.Reason)
			}

			logs, err := deps.Audit.Recent(cmd.Context(), uid, limit, 0)
			if err != nil {
				return describe(services.FromStoreError(err, "audit log"))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tUID\tROLE\tACTION\tOUTCOME\tREASON")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s.%s\t%s\t%s\n",
					l.Timestamp.Format("2006-01-02 15:04:05"), l.UID, l.Role,
					l.Resource, l.Operation, l.Outcome, l.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "Only entries of this account")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")
	return cmd
}

func parseAction(resource, operation string) (models.ResourceAction, error) {
	action := models.Action(models.ResourceKind(resource), models.Operation(operation))
	for _, a := range models.ReachableActions() {
		if a == action {
			return action, nil
		}
	}
	return action, fmt.Errorf("unknown action %s", action)
}

func signedIn(out io.Writer, p *models.Principal) error {
	if p.IsAnonymous() {
		return fmt.Errorf("signed in, but the account has no profile; ask an administrator to provision it")
	}
	fmt.Fprintf(out, "Signed in as %s (%s)\n", p.Email, p.Role)
	return nil
}

func writePrincipal(out io.Writer, p *models.Principal) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "uid:\t%s\n", p.UID)
	fmt.Fprintf(w, "email:\t%s\n", p.Email)
	fmt.Fprintf(w, "role:\t%s\n", p.Role)
	if name := p.FullName(); name != "" {
		fmt.Fprintf(w, "name:\t%s\n", name)
	}
	if p.ContactNumber != "" {
		fmt.Fprintf(w, "contact:\t%s\n", p.ContactNumber)
	}
	return w.Flush()
}

// describe turns a domain error into a console message
func describe(err error) error {
	switch services.GetErrorType(err) {
	case services.ErrorTypeAuthentication:
		return fmt.Errorf("sign-in failed: %w", err)
	case services.ErrorTypeBackendUnavailable:
		return fmt.Errorf("service unavailable, try again: %w", err)
	case services.ErrorTypeValidation:
		if fields, ok := services.GetErrorDetails(err)["fields"]; ok {
			return fmt.Errorf("invalid input: %v", fields)
		}
	case services.ErrorTypeConflict:
		return fmt.Errorf("already exists: %w", err)
	}
	return err
}
