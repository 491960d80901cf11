package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
	"oauth-token-cache/internal/models"
)

// MockEndpoint is a testify mock of oauth2.Endpoint
type MockEndpoint struct {
	mock.Mock
}

// RequestToken records the call and returns the configured response
func (m *MockEndpoint) RequestToken(ctx context.Context, req models.GrantRequest) (*models.TokenResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.TokenResponse)
	return resp, args.Error(1)
}

// TokenReply builds a successful endpoint response
func TokenReply(accessToken string, expiresIn *int) *models.TokenResponse {
	return &models.TokenResponse{
		TokenResult: models.TokenResult{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
	}
}

// ErrorReply builds an OAuth error response
func ErrorReply(code, description string) *models.TokenResponse {
	return &models.TokenResponse{
		AuthServerResponse: models.AuthServerResponse{
			Error:            code,
			ErrorDescription: description,
		},
	}
}
