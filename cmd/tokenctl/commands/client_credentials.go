package commands

import (
	"github.com/spf13/cobra"
)

func NewClientCredentialsCommand(opts *Options) *cobra.Command {
	var (
		clientID     string
		clientSecret string
		scopes       []string
	)

	cmd := &cobra.Command{
		Use:   "client-credentials",
		Short: "Request a token with the client credentials grant",
		Long: `Request an access token for the client itself.

The client secret may be passed with --client-secret or the
TOKENCTL_CLIENT_SECRET environment variable.

Examples:
  tokenctl client-credentials --endpoint https://auth.example.com/oauth/token --client-id svc --scope orders:read
  tokenctl client-credentials --client-id svc --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := opts.endpointURL()
			if err != nil {
				return err
			}

			token, err := opts.tokenClient().ClientCredentialsGrant(cmd.Context(), endpoint, clientID, secretOrEnv(clientSecret), scopes...)
			if err != nil {
				return err
			}
			return opts.printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Requested scope (repeatable)")

	return cmd
}
