package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// errFailed marks a command whose result has already been printed.
var errFailed = errors.New("operation failed")

type contextKey struct{}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "notesauth",
		Short:         "Sign in to the notes app's user pool and manage the local session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c := config.Load(envFile)
			level := c.GetLogLevel()
			if verbose {
				level = "debug"
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), c.GetEnv(), level)

			a, err := newApp(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			cmd.SetContext(contextWithApp(cmd.Context(), a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return appFrom(cmd).Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&envFile, "env-file", "e", ".env", "dotenv file to load before reading the environment")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newSignUpCmd(),
		newConfirmCmd(),
		newSignInCmd(),
		newWhoAmICmd(),
		newProfileCmd(),
		newRefreshCmd(),
		newSignOutCmd(),
		newTokenCmd(),
		newResendCodeCmd(),
		newForgotPasswordCmd(),
		newConfirmForgotPasswordCmd(),
	)
	return rootCmd
}

// printResult writes the result envelope as JSON and turns a failed result
// into errFailed so the process exits non-zero.
func printResult(cmd *cobra.Command, value any, err error) error {
	res := auth.NewResult(value, err)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return encErr
	}
	if !res.Success {
		return errFailed
	}
	return nil
}
