package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/internal/validate"
)

var (
	resetCodeFlag   string
	newPasswordFlag string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the account of the current profile",
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Request a password reset code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			if err := s.ForgotPassword(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a reset code has been issued.")
			return nil
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Set a new password using a reset code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := resetCodeFlag
		if code == "" {
			var err error
			if code, err = readLine(cmd, "Reset code: "); err != nil {
				return err
			}
		}
		password, err := readPassword(cmd, newPasswordFlag, "New password: ")
		if err != nil {
			return err
		}
		if err := validate.Password(password); err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.ResetPassword(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(code), password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset. Log in with the new password.")
			return nil
		})
	},
}

var changeEmailCmd = &cobra.Command{
	Use:   "change-email <new-email>",
	Short: "Change the account email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		if err := validate.Email(email); err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.ChangeEmail(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Email changed to %s\n", email)
			return nil
		})
	},
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the account password",
	Long: `Change the account password. The current password comes from --password,
$MATHQUIZ_PASSWORD or the first line on stdin; the new one from
--new-password or the next line on stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := readPassword(cmd, passwordFlag, "Current password: ")
		if err != nil {
			return err
		}
		newPassword := newPasswordFlag
		if newPassword == "" {
			if newPassword, err = readLine(cmd, "New password: "); err != nil {
				return err
			}
		}
		if err := validate.Password(newPassword); err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.ChangePassword(cmd.Context(), newPassword, oldPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		})
	},
}

var accountInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the account email and confirmation state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			info, err := s.AccountInfo(cmd.Context())
			if err != nil {
				return err
			}
			confirmed := "no"
			if info.IsEmailConfirmed {
				confirmed = "yes"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Email:     %s\nConfirmed: %s\n", info.Email, confirmed)
			return nil
		})
	},
}

func init() {
	resetPasswordCmd.Flags().StringVar(&resetCodeFlag, "code", "", "Reset code (else read from stdin)")
	resetPasswordCmd.Flags().StringVar(&newPasswordFlag, "new-password", "", "New password (else $"+envPassword+" or stdin)")
	changePasswordCmd.Flags().StringVar(&passwordFlag, "password", "", "Current password")
	changePasswordCmd.Flags().StringVar(&newPasswordFlag, "new-password", "", "New password")

	accountCmd.AddCommand(forgotPasswordCmd, resetPasswordCmd, changeEmailCmd, changePasswordCmd, accountInfoCmd)
	rootCmd.AddCommand(accountCmd)
}
