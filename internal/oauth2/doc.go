// Package oauth2 issues OAuth 2.0 access tokens for the client credentials,
// resource owner password and refresh token grants, and caches them until
// they expire.
//
// # Overview
//
// Two layers are exposed:
//
//   - TokenClient performs one form-encoded POST against a token endpoint and
//     parses the JSON reply. It can be used on its own when caching is not
//     wanted.
//   - CachingClient validates grant arguments, derives a cache key and routes
//     the request through a tokencache.Cache so that concurrent callers with
//     the same credentials share a single endpoint round trip.
//
// # Usage
//
//	store := cache.NewLocalStore[tokencache.Entry](10 * time.Minute)
//	client := oauth2.NewCachingClient(oauth2.NewTokenClient(), store, oauth2.DefaultClientOptions())
//
//	endpoint, _ := url.Parse("https://auth.example.com/oauth/token")
//	token, err := client.ClientCredentialsGrant(ctx, endpoint, "client-id", "client-secret", "api:read")
//	if err != nil {
//	    return err
//	}
//	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)
//
// Password grants take optional client credentials, scopes and extra form
// parameters as functional options:
//
//	token, err := client.ResourceOwnerPasswordGrant(ctx, endpoint, "alice", "pw",
//	    oauth2.WithClientCredentials("client-id", "client-secret"),
//	    oauth2.WithScopes("openid", "profile"),
//	    oauth2.WithExtraParams(map[string]*string{"acr_values": models.StringPtr("mfa")}),
//	)
//
// # Cache keys
//
// Keys are built by tokencache.GenerateKey from the grant type, username,
// password, client id and client secret. Refresh token grants key on the
// client only, so exchanging a new refresh token for the same client replaces
// the previous entry instead of adding one. Scopes are not part of the key.
//
// # Expiry
//
// A token is served from the cache until now + expires_in. When the endpoint
// omits expires_in, ClientOptions.DefaultCacheExpirySeconds applies (one day
// by default).
//
// # Error Handling
//
// All errors are *errors.AppError values from internal/common/errors:
//
//   - validation: a required argument was blank; nothing was sent
//   - authentication: the endpoint returned an OAuth error body, or a status
//     other than 2xx and 400. Code carries the OAuth error code and
//     errors.Description the error_description.
//   - transport: the request could not be sent, the reply was not valid
//     JSON, or the circuit breaker is open
//
// Failures are never cached; the next call retries.
//
//	_, err := client.RefreshTokenGrant(ctx, endpoint, rt, id, secret)
//	switch {
//	case errors.IsType(err, errors.ErrTypeAuth) && errors.Code(err) == "invalid_grant":
//	    // refresh token revoked, re-authenticate
//	case errors.IsType(err, errors.ErrTypeTransport):
//	    // endpoint unreachable, retry later
//	}
package oauth2
