package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/internal/validate"
)

var (
	passwordFlag string
	logoutLocal  bool
)

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		password, err := readPassword(cmd, passwordFlag, "Password: ")
		if err != nil {
			return err
		}
		if err := validate.Email(email); err != nil {
			return err
		}
		if err := validate.Password(password); err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.Register(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Log in with: mathquiz login %s\n", email, email)
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session in the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		password, err := readPassword(cmd, passwordFlag, "Password: ")
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (profile %s)\n", email, cfg.profile)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Long: `Log out revokes the session on the server and then forgets it locally.
With --local only the stored session is forgotten, which also works when the
server is unreachable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			if logoutLocal {
				s.ForgetSession()
			} else if err := s.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new token pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			if err := s.Refresh(cmd.Context()); err != nil {
				return err
			}
			expiry := s.Sessions().Get().TokenExpiry
			fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, expires %s\n", humanize.Time(expiry))
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session of the current profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			sess := s.Sessions().Get()
			out := cmd.OutOrStdout()
			if !sess.LoggedIn() {
				fmt.Fprintf(out, "Not logged in (profile %s)\n", cfg.profile)
				return nil
			}
			verb := "expires"
			if !sess.TokenExpiry.After(time.Now()) {
				verb = "expired"
			}
			fmt.Fprintf(out, "%s (profile %s, server %s)\n", sess.Email, cfg.profile, cfg.server)
			fmt.Fprintf(out, "Access token %s %s\n", verb, humanize.Time(sess.TokenExpiry))
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "Password (else $"+envPassword+" or a line on stdin)")
	}
	logoutCmd.Flags().BoolVar(&logoutLocal, "local", false, "Only forget the stored session")
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, refreshCmd, whoamiCmd)
}
