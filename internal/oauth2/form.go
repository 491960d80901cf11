package oauth2

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/models"
)

// buildForm encodes req as the token request body. Only the fields relevant
// to the grant are set and empty optional values are left out. An extra
// parameter may not replace a field the grant already sets.
func buildForm(req models.GrantRequest) (url.Values, error) {
	form := url.Values{}
	form.Set("grant_type", string(req.GrantType))

	setIfPresent := func(key, value string) {
		if value != "" {
			form.Set(key, value)
		}
	}

	switch req.GrantType {
	case models.GrantClientCredentials:
		setIfPresent("client_id", req.ClientID)
		setIfPresent("client_secret", req.ClientSecret)
	case models.GrantPassword:
		setIfPresent("client_id", req.ClientID)
		setIfPresent("client_secret", req.ClientSecret)
		setIfPresent("username", req.Username)
		setIfPresent("password", req.Password)
	case models.GrantRefreshToken:
		setIfPresent("refresh_token", req.RefreshToken)
		setIfPresent("client_id", req.ClientID)
		setIfPresent("client_secret", req.ClientSecret)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unsupported grant type %q", req.GrantType)).
			WithContext("argument", "grantType")
	}

	if scope := joinScopes(req.Scopes); scope != "" {
		form.Set("scope", scope)
	}

	// sorted so a collision is reported deterministically
	keys := make([]string, 0, len(req.ExtraParams))
	for key := range req.ExtraParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := req.ExtraParams[key]
		if value == nil {
			continue
		}
		if _, exists := form[key]; exists {
			return nil, errors.ValidationError("extra parameter collides with a grant field").
				WithContext("argument", "extraParams").
				WithContext("parameter", key)
		}
		form.Set(key, *value)
	}

	return form, nil
}

// joinScopes space-joins the non-blank scopes.
func joinScopes(scopes []string) string {
	kept := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}
