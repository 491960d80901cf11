package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"oauth-token-cache/internal/oauth2"
)

// PasswordEnv is read when --password is not given
const PasswordEnv = "TOKENCTL_PASSWORD"

func NewPasswordCommand(opts *Options) *cobra.Command {
	var (
		username     string
		password     string
		clientID     string
		clientSecret string
		scopes       []string
		params       []string
	)

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Request a token with the resource owner password grant",
		Long: `Request an access token for a user. Client credentials are optional and
sent only when given.

Examples:
  tokenctl password --endpoint https://auth.example.com/oauth/token --username alice
  tokenctl password --username alice --client-id web --scope openid --param acr_values=mfa`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := opts.endpointURL()
			if err != nil {
				return err
			}

			if password == "" {
				password = os.Getenv(PasswordEnv)
			}

			var grantOpts []oauth2.PasswordOption
			if secret := secretOrEnv(clientSecret); clientID != "" || secret != "" {
				grantOpts = append(grantOpts, oauth2.WithClientCredentials(clientID, secret))
			}
			if len(scopes) > 0 {
				grantOpts = append(grantOpts, oauth2.WithScopes(scopes...))
			}
			if extra := parseExtraParams(params); extra != nil {
				grantOpts = append(grantOpts, oauth2.WithExtraParams(extra))
			}

			token, err := opts.tokenClient().ResourceOwnerPasswordGrant(cmd.Context(), endpoint, username, password, grantOpts...)
			if err != nil {
				return fmt.Errorf("password grant for %s: %w", username, err)
			}
			return opts.printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Resource owner username")
	cmd.Flags().StringVar(&password, "password", "", "Resource owner password (env TOKENCTL_PASSWORD)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Requested scope (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Extra form parameter as key=value (repeatable)")

	return cmd
}
