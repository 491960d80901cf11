package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"oauth-token-cache/cmd/tokenctl/commands"
	"oauth-token-cache/internal/common/logging"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "tokenctl",
		Short: "Request and inspect OAuth2 tokens",
		Long: `tokenctl requests access tokens from an OAuth2 token endpoint using the
client credentials, resource owner password or refresh token grant, and
decodes JWT access tokens for inspection.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.WarnLevel
			if opts.Debug {
				level = logging.DebugLevel
			}
			// stdout carries the token; logs go to stderr
			if logger, err := logging.NewZapLogger(logging.LogConfig{Level: level, Output: os.Stderr}); err == nil {
				logging.SetGlobalLogger(logger)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.MustSync()
		},
	}

	opts.AddFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewClientCredentialsCommand(opts),
		commands.NewPasswordCommand(opts),
		commands.NewRefreshCommand(opts),
		commands.NewInspectCommand(opts),
	)

	return rootCmd.Execute()
}
