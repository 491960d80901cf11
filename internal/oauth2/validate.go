package oauth2

import (
	"strings"

	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/models"
)

// ValidateRequest checks that req carries everything its grant needs. It
// runs before any cache lookup or network I/O.
//
//	client_credentials: client id and secret
//	password:           username and password; client id and secret optional
//	refresh_token:      refresh token, client id and secret
func ValidateRequest(req models.GrantRequest) error {
	if req.Endpoint == nil {
		return errors.BlankArgument("tokenEndpoint")
	}
	if !req.Endpoint.IsAbs() || req.Endpoint.Host == "" {
		return errors.ValidationError("token endpoint must be an absolute URL").
			WithContext("argument", "tokenEndpoint")
	}

	var required []argument
	switch req.GrantType {
	case models.GrantClientCredentials:
		required = []argument{
			{"clientId", req.ClientID},
			{"clientSecret", req.ClientSecret},
		}
	case models.GrantPassword:
		required = []argument{
			{"username", req.Username},
			{"password", req.Password},
		}
	case models.GrantRefreshToken:
		required = []argument{
			{"refreshToken", req.RefreshToken},
			{"clientId", req.ClientID},
			{"clientSecret", req.ClientSecret},
		}
	default:
		return errors.ValidationError("unsupported grant type").WithContext("argument", "grantType")
	}

	for _, arg := range required {
		if isBlank(arg.value) {
			return errors.BlankArgument(arg.name)
		}
	}

	// surfaces extra parameter collisions before the request reaches the cache
	_, err := buildForm(req)
	return err
}

type argument struct {
	name  string
	value string
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
