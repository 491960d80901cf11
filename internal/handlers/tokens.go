package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/models"
	"oauth-token-cache/internal/oauth2"
)

// ClientCredentialsRequest is the body of POST /api/tokens/client-credentials
type ClientCredentialsRequest struct {
	TokenEndpoint string   `json:"token_endpoint"`
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	Scopes        []string `json:"scopes,omitempty"`
}

// PasswordRequest is the body of POST /api/tokens/password
type PasswordRequest struct {
	TokenEndpoint string             `json:"token_endpoint"`
	Username      string             `json:"username"`
	Password      string             `json:"password"`
	ClientID      string             `json:"client_id,omitempty"`
	ClientSecret  string             `json:"client_secret,omitempty"`
	Scopes        []string           `json:"scopes,omitempty"`
	ExtraParams   map[string]*string `json:"extra_params,omitempty"`
}

// RefreshRequest is the body of POST /api/tokens/refresh
type RefreshRequest struct {
	TokenEndpoint string `json:"token_endpoint"`
	RefreshToken  string `json:"refresh_token"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

// InvalidateRequest is the body of POST /api/tokens/invalidate. Key wins
// over the grant fields when both are set.
type InvalidateRequest struct {
	Key          string `json:"key,omitempty"`
	GrantType    string `json:"grant_type,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid request body").WithContext("argument", "body")
	}
	return nil
}

// parseEndpoint leaves absolute-URL checks to the client; an empty value
// becomes nil so it is reported as missing.
func parseEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.ValidationError("token endpoint is not a valid URL").WithContext("argument", "tokenEndpoint")
	}
	return u, nil
}

// ClientCredentialsToken issues a token for a client
// @Summary Client credentials token
// @Description Returns a cached token for the client, requesting one from the token endpoint on a miss
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body ClientCredentialsRequest true "Client credentials"
// @Success 200 {object} models.TokenResult "Token"
// @Failure 400 {object} ErrorResponse "Missing or blank argument"
// @Failure 401 {object} ErrorResponse "Token endpoint rejected the request"
// @Failure 502 {object} ErrorResponse "Token endpoint unreachable or malformed response"
// @Router /api/tokens/client-credentials [post]
func (h *Handlers) ClientCredentialsToken(w http.ResponseWriter, r *http.Request) {
	var req ClientCredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	endpoint, err := parseEndpoint(req.TokenEndpoint)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	token, err := h.tokens.ClientCredentialsGrant(r.Context(), endpoint, req.ClientID, req.ClientSecret, req.Scopes...)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, http.StatusOK, token)
}

// PasswordToken issues a token for a resource owner
// @Summary Resource owner password token
// @Description Returns a cached token for the user. Client credentials, scopes and extra parameters are optional
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body PasswordRequest true "User credentials"
// @Success 200 {object} models.TokenResult "Token"
// @Failure 400 {object} ErrorResponse "Missing or blank argument"
// @Failure 401 {object} ErrorResponse "Token endpoint rejected the request"
// @Failure 502 {object} ErrorResponse "Token endpoint unreachable or malformed response"
// @Router /api/tokens/password [post]
func (h *Handlers) PasswordToken(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	endpoint, err := parseEndpoint(req.TokenEndpoint)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	var opts []oauth2.PasswordOption
	if req.ClientID != "" || req.ClientSecret != "" {
		opts = append(opts, oauth2.WithClientCredentials(req.ClientID, req.ClientSecret))
	}
	if len(req.Scopes) > 0 {
		opts = append(opts, oauth2.WithScopes(req.Scopes...))
	}
	if len(req.ExtraParams) > 0 {
		opts = append(opts, oauth2.WithExtraParams(req.ExtraParams))
	}

	token, err := h.tokens.ResourceOwnerPasswordGrant(r.Context(), endpoint, req.Username, req.Password, opts...)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, http.StatusOK, token)
}

// RefreshToken exchanges a refresh token
// @Summary Refresh token
// @Description Exchanges a refresh token. Results are cached per client, not per refresh token
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token and client credentials"
// @Success 200 {object} models.TokenResult "Token"
// @Failure 400 {object} ErrorResponse "Missing or blank argument"
// @Failure 401 {object} ErrorResponse "Token endpoint rejected the request"
// @Failure 502 {object} ErrorResponse "Token endpoint unreachable or malformed response"
// @Router /api/tokens/refresh [post]
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	endpoint, err := parseEndpoint(req.TokenEndpoint)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	token, err := h.tokens.RefreshTokenGrant(r.Context(), endpoint, req.RefreshToken, req.ClientID, req.ClientSecret)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, http.StatusOK, token)
}

// InvalidateToken drops a cached token
// @Summary Invalidate cached token
// @Description Removes a cached token by key or by the credentials it was issued for. Unknown entries are ignored
// @Tags tokens
// @Accept json
// @Param request body InvalidateRequest true "Cache key or grant credentials"
// @Success 204 "Invalidated"
// @Failure 400 {object} ErrorResponse "Neither key nor a valid grant type given"
// @Router /api/tokens/invalidate [post]
func (h *Handlers) InvalidateToken(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	if req.Key != "" {
		err := h.tokens.Invalidate(r.Context(), req.Key)
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	grant := models.GrantType(req.GrantType)
	if !grant.Valid() {
		h.sendError(w, r, errors.ValidationError("key or a supported grant_type is required").WithContext("argument", "grantType"))
		return
	}

	err := h.tokens.InvalidateGrant(r.Context(), models.GrantRequest{
		GrantType:    grant,
		Username:     req.Username,
		Password:     req.Password,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
