package commands

import (
	"github.com/spf13/cobra"
)

func NewRefreshCommand(opts *Options) *cobra.Command {
	var (
		refreshToken string
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token",
		Long: `Exchange a refresh token for a new access token.

Examples:
  tokenctl refresh --endpoint https://auth.example.com/oauth/token --refresh-token 8xLOxBtZp8 --client-id web`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := opts.endpointURL()
			if err != nil {
				return err
			}

			token, err := opts.tokenClient().RefreshTokenGrant(cmd.Context(), endpoint, refreshToken, clientID, secretOrEnv(clientSecret))
			if err != nil {
				return err
			}
			return opts.printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token to exchange")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")

	return cmd
}
