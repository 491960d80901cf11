package models

import (
	"net/url"
	"strings"
)

// GrantType identifies the OAuth2 grant used to obtain a token.
type GrantType string

const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
)

// Valid reports whether g is one of the supported grants.
func (g GrantType) Valid() bool {
	switch g {
	case GrantClientCredentials, GrantPassword, GrantRefreshToken:
		return true
	}
	return false
}

// GrantRequest describes one token request. GrantType selects which of the
// identity fields are meaningful:
//
//	client_credentials: ClientID, ClientSecret
//	password:           Username, Password, optional ClientID/ClientSecret
//	refresh_token:      RefreshToken, ClientID, ClientSecret
//
// Scopes are sent space-joined when non-empty. ExtraParams entries with a nil
// value are dropped from the request.
type GrantRequest struct {
	Endpoint     *url.URL
	GrantType    GrantType
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	Scopes       []string
	ExtraParams  map[string]*string
}

// TokenResult is a successfully issued token. It is immutable once produced;
// use Clone before handing a cached value to a caller.
type TokenResult struct {
	AccessToken   string `json:"access_token,omitempty"`
	IdentityToken string `json:"identity_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	ExpiresIn     *int   `json:"expires_in,omitempty"`
	Scope         string `json:"scope,omitempty"`
}

// Clone returns a deep copy of t.
func (t TokenResult) Clone() TokenResult {
	if t.ExpiresIn != nil {
		v := *t.ExpiresIn
		t.ExpiresIn = &v
	}
	return t
}

// Scopes splits the granted scope string.
func (t TokenResult) Scopes() []string {
	return strings.Fields(t.Scope)
}

// AuthServerResponse carries the OAuth error fields of a token endpoint reply.
type AuthServerResponse struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the JSON body returned by a token endpoint: either a token
// or an OAuth error.
type TokenResponse struct {
	TokenResult
	AuthServerResponse
}

// Failed reports whether the endpoint returned an OAuth error.
func (r *TokenResponse) Failed() bool {
	return r.Error != ""
}

// IntPtr is a convenience for building TokenResult literals.
func IntPtr(v int) *int {
	return &v
}

// StringPtr is a convenience for building ExtraParams literals.
func StringPtr(v string) *string {
	return &v
}
