package cli

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	authsession "github.com/trackwise/authsession"
	"github.com/trackwise/authsession/gateway"
	"github.com/trackwise/authsession/internal/output"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = "TRACKWISE_PASSWORD"

func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv(PasswordEnv); v != "" {
		return v, nil
	}
	return "", output.Usage("a password is required: pass --password or set %s", PasswordEnv)
}

func (a *app) registerCommand() *cobra.Command {
	var email, username, fullName, password string
	var noLogin bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" || strings.TrimSpace(username) == "" {
				return output.Usage("--email and --username are required")
			}
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			req := gateway.RegisterRequest{Email: email, Username: username, Password: pw}
			if fullName != "" {
				req.FullName = &fullName
			}

			if noLogin {
				id, err := mgr.Register(cmd.Context(), req)
				if err != nil {
					return err
				}
				a.printer.Success("registered %s (id %d)", id.Email, id.ID)
				return nil
			}

			id, err := mgr.RegisterAndLogin(cmd.Context(), req)
			if err != nil {
				var partial *authsession.RegisteredLoginError
				if errors.As(err, &partial) && partial.Identity != nil {
					a.printer.Warning("account %s was created but sign-in failed; run `trackwise login`", partial.Identity.Email)
				}
				return err
			}
			a.printer.Success("registered and signed in as %s", id.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $"+PasswordEnv+")")
	cmd.Flags().BoolVar(&noLogin, "no-login", false, "create the account without signing in")
	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in and store the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				email = args[0]
			}
			if strings.TrimSpace(email) == "" {
				return output.Usage("an email is required")
			}
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.Login(cmd.Context(), email, pw); err != nil {
				return err
			}
			a.printer.Success("signed in as %s", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $"+PasswordEnv+")")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			mgr.Logout(cmd.Context())
			a.printer.Success("signed out")
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			st := mgr.Status(cmd.Context())
			authenticated := st.State == authsession.StateAuthenticated

			a.printer.Field("State", a.printer.Badge(authenticated))
			a.printer.Field("API", a.cfg.API.URL)
			a.printer.Field("Store", a.cfg.Store.Backend+" ("+a.cfg.Store.Namespace+")")
			if !authenticated {
				return nil
			}
			if st.Email != "" {
				a.printer.Field("Email", st.Email)
			}
			if st.Subject != "" {
				a.printer.Field("Subject", st.Subject)
			}
			if !st.ExpiresAt.IsZero() {
				a.printer.Field("Expires", st.ExpiresAt.Local().Format(time.RFC1123))
			}
			if st.Expired {
				a.printer.Warning("the token has expired; the next request will be rejected")
			}
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the signed-in account from the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if mgr.State() != authsession.StateAuthenticated {
				return errNotSignedIn
			}
			id, err := mgr.API().Me(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.Field("ID", itoa(id.ID))
			a.printer.Field("Email", id.Email)
			a.printer.Field("Username", id.Username)
			if id.FullName != nil {
				a.printer.Field("Name", *id.FullName)
			}
			a.printer.Field("Created", id.CreatedAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

var errNotSignedIn = &output.CLIError{
	Summary:    "not signed in",
	Suggestion: "run `trackwise login`",
	ExitCode:   output.ExitAuthError,
}
