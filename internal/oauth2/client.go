package oauth2

import (
	"context"
	"net/url"
	"time"

	"oauth-token-cache/internal/common/cache"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/models"
	"oauth-token-cache/internal/tokencache"
)

// DefaultCacheExpirySeconds is the cache lifetime of tokens issued without
// expires_in.
const DefaultCacheExpirySeconds = 86400

// ClientOptions is fixed when a client is created and shared by every
// request it issues.
type ClientOptions struct {
	DefaultCacheExpirySeconds int
}

// DefaultClientOptions returns the options used when none are given
func DefaultClientOptions() ClientOptions {
	return ClientOptions{DefaultCacheExpirySeconds: DefaultCacheExpirySeconds}
}

// DefaultCacheExpiry returns the fallback lifetime, substituting the default
// for non-positive values.
func (o ClientOptions) DefaultCacheExpiry() time.Duration {
	if o.DefaultCacheExpirySeconds <= 0 {
		return DefaultCacheExpirySeconds * time.Second
	}
	return time.Duration(o.DefaultCacheExpirySeconds) * time.Second
}

// Client issues tokens for the supported grants.
type Client interface {
	ClientCredentialsGrant(ctx context.Context, endpoint *url.URL, clientID, clientSecret string, scopes ...string) (models.TokenResult, error)
	ResourceOwnerPasswordGrant(ctx context.Context, endpoint *url.URL, username, password string, opts ...PasswordOption) (models.TokenResult, error)
	RefreshTokenGrant(ctx context.Context, endpoint *url.URL, refreshToken, clientID, clientSecret string) (models.TokenResult, error)
}

// PasswordOption adds optional fields to a password grant.
type PasswordOption func(*models.GrantRequest)

// WithClientCredentials authenticates the client alongside the resource owner.
// Either value may be empty.
func WithClientCredentials(clientID, clientSecret string) PasswordOption {
	return func(r *models.GrantRequest) {
		r.ClientID = clientID
		r.ClientSecret = clientSecret
	}
}

// WithScopes requests the given scopes
func WithScopes(scopes ...string) PasswordOption {
	return func(r *models.GrantRequest) {
		r.Scopes = append(r.Scopes, scopes...)
	}
}

// WithExtraParams adds form parameters. Entries with a nil value are not sent.
func WithExtraParams(params map[string]*string) PasswordOption {
	return func(r *models.GrantRequest) {
		if r.ExtraParams == nil {
			r.ExtraParams = make(map[string]*string, len(params))
		}
		for k, v := range params {
			r.ExtraParams[k] = v
		}
	}
}

// CachingClient issues tokens through a coalescing cache. Concurrent calls
// with the same credentials share one endpoint request.
type CachingClient struct {
	endpoint Endpoint
	cache    *tokencache.Cache
	options  ClientOptions
	logger   logging.Logger
}

var _ Client = (*CachingClient)(nil)

// NewCachingClient creates a client that caches in store. cacheOpts are
// applied after the default expiry taken from options.
func NewCachingClient(endpoint Endpoint, store cache.Store[tokencache.Entry], options ClientOptions, cacheOpts ...tokencache.Option) *CachingClient {
	opts := append([]tokencache.Option{tokencache.WithDefaultExpiry(options.DefaultCacheExpiry())}, cacheOpts...)

	return &CachingClient{
		endpoint: endpoint,
		cache:    tokencache.New(store, opts...),
		options:  options,
		logger:   logging.GetGlobalLogger(),
	}
}

// Options returns the options the client was created with
func (c *CachingClient) Options() ClientOptions {
	return c.options
}

// ClientCredentialsGrant returns a token for the client itself.
func (c *CachingClient) ClientCredentialsGrant(ctx context.Context, endpoint *url.URL, clientID, clientSecret string, scopes ...string) (models.TokenResult, error) {
	return c.Grant(ctx, models.GrantRequest{
		Endpoint:     endpoint,
		GrantType:    models.GrantClientCredentials,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
	})
}

// ResourceOwnerPasswordGrant returns a token for a user's credentials.
func (c *CachingClient) ResourceOwnerPasswordGrant(ctx context.Context, endpoint *url.URL, username, password string, opts ...PasswordOption) (models.TokenResult, error) {
	req := models.GrantRequest{
		Endpoint:  endpoint,
		GrantType: models.GrantPassword,
		Username:  username,
		Password:  password,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return c.Grant(ctx, req)
}

// RefreshTokenGrant exchanges a refresh token. The result is cached per
// client, so a second call within the token lifetime returns the cached
// token even when refreshToken differs.
func (c *CachingClient) RefreshTokenGrant(ctx context.Context, endpoint *url.URL, refreshToken, clientID, clientSecret string) (models.TokenResult, error) {
	return c.Grant(ctx, models.GrantRequest{
		Endpoint:     endpoint,
		GrantType:    models.GrantRefreshToken,
		RefreshToken: refreshToken,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// Grant validates req and returns its cached token, fetching one on a miss.
func (c *CachingClient) Grant(ctx context.Context, req models.GrantRequest) (models.TokenResult, error) {
	if err := ValidateRequest(req); err != nil {
		return models.TokenResult{}, err
	}

	key := tokencache.KeyFor(req)
	ctx = logging.ContextWithGrantType(ctx, string(req.GrantType))

	return c.cache.GetOrCreate(ctx, key, func(ctx context.Context) (models.TokenResult, error) {
		token, err := fetchToken(ctx, c.endpoint, req)
		if err != nil {
			return models.TokenResult{}, err
		}

		c.logger.WithContext(ctx).Info("Issued new token",
			logging.Field{Key: "key", Value: tokencache.Fingerprint(key)},
			logging.Field{Key: "expires_in", Value: token.ExpiresIn},
		)
		return token, nil
	})
}

// CacheKey returns the key req is cached under
func (c *CachingClient) CacheKey(req models.GrantRequest) string {
	return tokencache.KeyFor(req)
}

// Invalidate drops the cached token for key. Unknown keys are ignored.
func (c *CachingClient) Invalidate(ctx context.Context, key string) error {
	return c.cache.Invalidate(ctx, key)
}

// InvalidateGrant drops the cached token for the grant described by req, so
// the next call for it reaches the endpoint.
func (c *CachingClient) InvalidateGrant(ctx context.Context, req models.GrantRequest) error {
	return c.Invalidate(ctx, tokencache.KeyFor(req))
}

// Cached returns the live cache entry for req without contacting the
// endpoint.
func (c *CachingClient) Cached(ctx context.Context, req models.GrantRequest) (tokencache.Entry, bool) {
	return c.cache.Peek(ctx, tokencache.KeyFor(req))
}
