package cmd

import (
	"github.com/spf13/cobra"
)

func newSignUpCmd() *cobra.Command {
	var password, name string
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a new account; a confirmation code is emailed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appFrom(cmd).service.SignUp(cmd.Context(), args[0], password, name)
			return printResult(cmd, res, err)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name (defaults to the email's local part)")
	return cmd
}

func newConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <email> <code>",
		Short: "Confirm a new account with the emailed code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := appFrom(cmd).service.ConfirmSignUp(cmd.Context(), args[0], args[1])
			return printResult(cmd, nil, err)
		},
	}
}

func newResendCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-code <email>",
		Short: "Send a new account confirmation code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delivery, err := appFrom(cmd).service.ResendConfirmationCode(cmd.Context(), args[0])
			return printResult(cmd, delivery, err)
		},
	}
}

func newForgotPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Email a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delivery, err := appFrom(cmd).service.ForgotPassword(cmd.Context(), args[0])
			return printResult(cmd, delivery, err)
		},
	}
}

func newConfirmForgotPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "confirm-forgot-password <email> <code>",
		Short: "Set a new password using the emailed reset code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := appFrom(cmd).service.ConfirmForgotPassword(cmd.Context(), args[0], args[1], password)
			return printResult(cmd, nil, err)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")
	return cmd
}
