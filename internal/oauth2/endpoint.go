package oauth2

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"oauth-token-cache/internal/circuitbreaker"
	"oauth-token-cache/internal/common/errors"
	commonhttp "oauth-token-cache/internal/common/http"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/models"
)

// Endpoint performs a single token request. An OAuth error body is returned
// as a response with Error set, not as an error.
type Endpoint interface {
	RequestToken(ctx context.Context, req models.GrantRequest) (*models.TokenResponse, error)
}

// TokenClient is the non-caching token endpoint client. It is safe for
// concurrent use.
type TokenClient struct {
	httpClient       *http.Client
	breaker          *circuitbreaker.GoBreakerAdapter
	logger           logging.Logger
	maxResponseBytes int64
}

var _ Endpoint = (*TokenClient)(nil)

// TokenClientOption configures a TokenClient
type TokenClientOption func(*TokenClient)

// WithHTTPClient sets the HTTP client used for token requests
func WithHTTPClient(client *http.Client) TokenClientOption {
	return func(c *TokenClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCircuitBreaker guards requests with breaker
func WithCircuitBreaker(breaker *circuitbreaker.GoBreakerAdapter) TokenClientOption {
	return func(c *TokenClient) {
		c.breaker = breaker
	}
}

// WithTokenClientLogger sets the logger
func WithTokenClientLogger(logger logging.Logger) TokenClientOption {
	return func(c *TokenClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxResponseBytes caps the size of token endpoint replies
func WithMaxResponseBytes(n int64) TokenClientOption {
	return func(c *TokenClient) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

// NewTokenClient creates a token endpoint client
func NewTokenClient(opts ...TokenClientOption) *TokenClient {
	c := &TokenClient{
		httpClient:       commonhttp.NewHTTPClient(),
		logger:           logging.GetGlobalLogger(),
		maxResponseBytes: commonhttp.DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusError is a reply whose status is neither 2xx nor 400.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("Non-success status code: %d. Response body: %s", e.code, e.body)
}

// RequestToken posts req to its endpoint and parses the reply. 2xx and 400
// replies are decoded; any other status is an authentication error. A
// network failure, a body that is neither a token nor an OAuth error, or a
// 400 without an error field is a transport error.
func (c *TokenClient) RequestToken(ctx context.Context, req models.GrantRequest) (*models.TokenResponse, error) {
	if req.Endpoint == nil {
		return nil, errors.BlankArgument("tokenEndpoint")
	}

	form, err := buildForm(req)
	if err != nil {
		return nil, err
	}

	logger := c.logger.WithFields(
		logging.Field{Key: "grant_type", Value: string(req.GrantType)},
		logging.Field{Key: "endpoint", Value: req.Endpoint.Host},
	)
	logger.Debug("Requesting token")

	var (
		body      []byte
		status    int
		statusErr *statusError
	)
	exchange := func() error {
		var err error
		body, status, err = c.exchange(ctx, req, form.Encode())
		if stderrors.As(err, &statusErr) && statusErr.code < http.StatusInternalServerError {
			// the server answered; only 5xx counts against the breaker
			return nil
		}
		return err
	}

	if c.breaker != nil {
		err = c.breaker.Execute(exchange)
	} else {
		err = exchange()
	}

	if statusErr != nil {
		logger.Warn("Token endpoint returned non-success status",
			logging.Field{Key: "status_code", Value: statusErr.code},
		)
		return nil, errors.AuthError(statusErr.Error()).WithContext(errors.StatusCodeKey, statusErr.code)
	}
	if err != nil {
		logger.Warn("Token request failed", logging.Err(err))
		return nil, err
	}

	var resp models.TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.TransportError("malformed token response", err)
	}
	if !resp.Failed() && resp.AccessToken == "" {
		return nil, errors.TransportError("token response has neither access_token nor error", nil)
	}
	if status == http.StatusBadRequest && !resp.Failed() {
		return nil, errors.TransportError("400 token response without error", nil).
			WithContext(errors.StatusCodeKey, status)
	}

	if resp.Failed() {
		logger.Debug("Token endpoint returned OAuth error",
			logging.Field{Key: "error_code", Value: resp.Error},
		)
	}

	return &resp, nil
}

// exchange sends the request and returns the status and body of 2xx and 400
// replies.
func (c *TokenClient) exchange(ctx context.Context, req models.GrantRequest, encoded string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint.String(), strings.NewReader(encoded))
	if err != nil {
		return nil, 0, errors.TransportError("failed to create token request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, errors.TransportError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := commonhttp.ReadBody(resp, c.maxResponseBytes)
	if err != nil {
		return nil, 0, errors.TransportError("failed to read token response", err)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success && resp.StatusCode != http.StatusBadRequest {
		return nil, resp.StatusCode, &statusError{code: resp.StatusCode, body: string(body)}
	}

	return body, resp.StatusCode, nil
}

// Grant validates req, requests a token and turns an OAuth error body into
// an authentication error. Nothing is cached.
func (c *TokenClient) Grant(ctx context.Context, req models.GrantRequest) (models.TokenResult, error) {
	if err := ValidateRequest(req); err != nil {
		return models.TokenResult{}, err
	}
	return fetchToken(ctx, c, req)
}

// fetchToken runs one request and maps the reply to a token or an error.
func fetchToken(ctx context.Context, endpoint Endpoint, req models.GrantRequest) (models.TokenResult, error) {
	resp, err := endpoint.RequestToken(ctx, req)
	if err != nil {
		return models.TokenResult{}, err
	}
	if resp.Failed() {
		return models.TokenResult{}, errors.OAuthError(resp.Error, resp.ErrorDescription)
	}
	return resp.TokenResult, nil
}
