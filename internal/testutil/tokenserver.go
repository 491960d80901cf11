package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"oauth-token-cache/internal/models"
)

// Default credentials accepted by a TokenServer
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	Username     = "alice"
	Password     = "wonderland"
	TokenPath    = "/oauth/token"
)

// TokenClaims are the claims of access tokens issued by TokenServer.
type TokenClaims struct {
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	GrantType string `json:"grant_type"`
	jwt.RegisteredClaims
}

// TokenServer is an in-process OAuth2 token endpoint. It issues HS256 JWT
// access tokens and counts requests per grant type.
type TokenServer struct {
	*httptest.Server

	signingKey []byte

	mu            sync.Mutex
	calls         map[models.GrantType]int
	forms         []url.Values
	clients       map[string]string
	users         map[string]string
	refreshTokens map[string]string
	expiresIn     *int
	delay         time.Duration
	status        int
	body          string
}

// NewTokenServer starts a token server accepting ClientID/ClientSecret and
// Username/Password. It is closed when the test ends.
func NewTokenServer(tb testing.TB) *TokenServer {
	tb.Helper()

	s := &TokenServer{
		signingKey:    []byte("token-server-signing-key"),
		calls:         make(map[models.GrantType]int),
		clients:       map[string]string{ClientID: ClientSecret},
		users:         map[string]string{Username: Password},
		refreshTokens: make(map[string]string),
		expiresIn:     models.IntPtr(3600),
	}

	router := mux.NewRouter()
	router.HandleFunc(TokenPath, s.handleToken).Methods(http.MethodPost)

	s.Server = httptest.NewServer(router)
	tb.Cleanup(s.Close)
	return s
}

// TokenURL returns the absolute token endpoint URL
func (s *TokenServer) TokenURL() *url.URL {
	u, _ := url.Parse(s.URL + TokenPath)
	return u
}

// SigningKey returns the HMAC key access tokens are signed with
func (s *TokenServer) SigningKey() []byte {
	return s.signingKey
}

// SetExpiresIn sets expires_in for issued tokens; nil omits the field.
func (s *TokenServer) SetExpiresIn(seconds *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

// SetDelay holds every response for d.
func (s *TokenServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetResponse makes the server answer every request with status and body.
// A zero status restores normal behaviour.
func (s *TokenServer) SetResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// AddClient registers another confidential client
func (s *TokenServer) AddClient(id, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id] = secret
}

// AddUser registers another resource owner for the password grant
func (s *TokenServer) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// Calls returns how many requests were made for grant
func (s *TokenServer) Calls(grant models.GrantType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[grant]
}

// TotalCalls returns the number of token requests received
func (s *TokenServer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// LastForm returns the form of the most recent request
func (s *TokenServer) LastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forms) == 0 {
		return nil
	}
	return s.forms[len(s.forms)-1]
}

func (s *TokenServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, models.AuthServerResponse{Error: "invalid_request", ErrorDescription: err.Error()})
		return
	}
	form := r.PostForm
	grant := models.GrantType(form.Get("grant_type"))

	s.mu.Lock()
	s.calls[grant]++
	s.forms = append(s.forms, form)
	delay, status, body, expiresIn := s.delay, s.status, s.body, s.expiresIn
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	subject, errResp := s.authorize(grant, form)
	if errResp != nil {
		writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	token, err := s.issue(grant, subject, form, expiresIn)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.AuthServerResponse{Error: "server_error", ErrorDescription: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// authorize checks the grant's credentials and returns the token subject.
func (s *TokenServer) authorize(grant models.GrantType, form url.Values) (string, *models.AuthServerResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientID := form.Get("client_id")
	clientOK := func() bool {
		secret, ok := s.clients[clientID]
		return ok && secret == form.Get("client_secret")
	}

	switch grant {
	case models.GrantClientCredentials:
		if !clientOK() {
			return "", &models.AuthServerResponse{Error: "invalid_client", ErrorDescription: "client authentication failed"}
		}
		return clientID, nil

	case models.GrantPassword:
		if clientID != "" && !clientOK() {
			return "", &models.AuthServerResponse{Error: "invalid_client", ErrorDescription: "client authentication failed"}
		}
		username := form.Get("username")
		if password, ok := s.users[username]; !ok || password != form.Get("password") {
			return "", &models.AuthServerResponse{Error: "invalid_grant", ErrorDescription: "invalid username or password"}
		}
		return username, nil

	case models.GrantRefreshToken:
		if !clientOK() {
			return "", &models.AuthServerResponse{Error: "invalid_client", ErrorDescription: "client authentication failed"}
		}
		subject, ok := s.refreshTokens[form.Get("refresh_token")]
		if !ok {
			return "", &models.AuthServerResponse{Error: "invalid_grant", ErrorDescription: "refresh token is invalid or revoked"}
		}
		return subject, nil

	default:
		return "", &models.AuthServerResponse{Error: "unsupported_grant_type"}
	}
}

func (s *TokenServer) issue(grant models.GrantType, subject string, form url.Values, expiresIn *int) (models.TokenResult, error) {
	now := time.Now()
	claims := TokenClaims{
		Scope:     form.Get("scope"),
		ClientID:  form.Get("client_id"),
		GrantType: string(grant),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  subject,
			Issuer:   s.URL,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if expiresIn != nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(*expiresIn) * time.Second))
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return models.TokenResult{}, err
	}

	result := models.TokenResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Scope:       claims.Scope,
	}

	if grant != models.GrantClientCredentials {
		refreshToken := uuid.NewString()
		s.mu.Lock()
		s.refreshTokens[refreshToken] = subject
		s.mu.Unlock()
		result.RefreshToken = refreshToken
	}

	return result, nil
}

// IssueRefreshToken registers a refresh token for subject without a prior grant.
func (s *TokenServer) IssueRefreshToken(subject string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[token] = subject
	return token
}

// ParseAccessToken verifies an access token issued by s.
func (s *TokenServer) ParseAccessToken(accessToken string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
