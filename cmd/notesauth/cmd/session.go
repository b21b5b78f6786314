package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newSignInCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in and store the session locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := appFrom(cmd).service.SignIn(cmd.Context(), args[0], password)
			return printResult(cmd, session, err)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := appFrom(cmd).service.GetCurrentUser(cmd.Context())
			return printResult(cmd, session, err)
		},
	}
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Decode the stored identity token into a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := appFrom(cmd).service.GetUserProfile(cmd.Context())
			return printResult(cmd, profile, err)
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for new access and identity tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := appFrom(cmd).service.RefreshSession(cmd.Context())
			return printResult(cmd, session, err)
		},
	}
}

func newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := appFrom(cmd).service.SignOut(cmd.Context())
			return printResult(cmd, nil, err)
		},
	}
}

type bearerToken struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the stored access token for calling the notes API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := appFrom(cmd).service.TokenSource(cmd.Context())
			if err != nil {
				return printResult(cmd, nil, err)
			}
			tok, err := ts.Token()
			if err != nil {
				return printResult(cmd, nil, err)
			}
			return printResult(cmd, bearerToken{AccessToken: tok.AccessToken, TokenType: tok.Type(), Expiry: tok.Expiry}, nil)
		},
	}
}
