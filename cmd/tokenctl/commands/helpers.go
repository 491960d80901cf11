package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"oauth-token-cache/internal/common/cache"
	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/models"
	"oauth-token-cache/internal/oauth2"
	"oauth-token-cache/internal/tokencache"

	commonhttp "oauth-token-cache/internal/common/http"
)

// ClientSecretEnv is read when --client-secret is not given
const ClientSecretEnv = "TOKENCTL_CLIENT_SECRET"

// Options are the flags shared by every subcommand
type Options struct {
	Endpoint string
	Timeout  time.Duration
	Raw      bool
	Debug    bool

	// client overrides the client built from the flags
	client oauth2.Client
}

// AddFlags registers the persistent flags on root
func (o *Options) AddFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&o.Endpoint, "endpoint", os.Getenv("TOKENCTL_ENDPOINT"), "Token endpoint URL (env TOKENCTL_ENDPOINT)")
	root.PersistentFlags().DurationVar(&o.Timeout, "timeout", 30*time.Second, "Token request timeout")
	root.PersistentFlags().BoolVar(&o.Raw, "raw", false, "Print only the access token")
	root.PersistentFlags().BoolVar(&o.Debug, "debug", false, "Enable debug logging")
}

func (o *Options) tokenClient() oauth2.Client {
	if o.client != nil {
		return o.client
	}
	endpoint := oauth2.NewTokenClient(oauth2.WithHTTPClient(commonhttp.NewHTTPClientWithTimeout(o.Timeout)))
	return oauth2.NewCachingClient(endpoint, cache.NewLocalStore[tokencache.Entry](time.Minute), oauth2.DefaultClientOptions())
}

func (o *Options) endpointURL() (*url.URL, error) {
	if o.Endpoint == "" {
		return nil, errors.BlankArgument("tokenEndpoint")
	}
	u, err := url.Parse(o.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid --endpoint: %w", err)
	}
	return u, nil
}

func secretOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(ClientSecretEnv)
}

func (o *Options) printToken(w io.Writer, token models.TokenResult) error {
	if o.Raw {
		_, err := fmt.Fprintln(w, token.AccessToken)
		return err
	}
	return printJSON(w, token)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseExtraParams turns key=value pairs into extra form parameters. A
// pair without "=" is sent as an empty value.
func parseExtraParams(pairs []string) map[string]*string {
	if len(pairs) == 0 {
		return nil
	}
	params := make(map[string]*string, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		params[key] = models.StringPtr(value)
	}
	return params
}
