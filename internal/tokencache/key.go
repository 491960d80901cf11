package tokencache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"oauth-token-cache/internal/models"
)

const (
	keyNamespace = "_CachingTokenClient"
	keySeparator = "_"
)

// keyEscaper keeps the separator out of caller-supplied fields so distinct
// tuples never produce the same key. Grant types come from a fixed set and
// are written as is.
var keyEscaper = strings.NewReplacer(`\`, `\\`, keySeparator, `\`+keySeparator)

// GenerateKey derives the cache key for a grant. Absent fields are passed as
// empty strings so every position in the key is always present. A backslash
// or underscore inside a credential is escaped with a backslash.
func GenerateKey(grantType models.GrantType, username, password, clientID, clientSecret string) string {
	return strings.Join([]string{
		keyNamespace,
		string(grantType),
		keyEscaper.Replace(username),
		keyEscaper.Replace(password),
		keyEscaper.Replace(clientID),
		keyEscaper.Replace(clientSecret),
	}, keySeparator)
}

// KeyFor derives the cache key for req. Refresh grants key on the client
// alone, so rotating refresh tokens for one client share a single entry.
// Scopes and extra parameters never take part in the key.
func KeyFor(req models.GrantRequest) string {
	switch req.GrantType {
	case models.GrantRefreshToken:
		return GenerateKey(req.GrantType, "", "", req.ClientID, req.ClientSecret)
	case models.GrantClientCredentials:
		return GenerateKey(req.GrantType, "", "", req.ClientID, req.ClientSecret)
	default:
		return GenerateKey(req.GrantType, req.Username, req.Password, req.ClientID, req.ClientSecret)
	}
}

// Fingerprint returns a short, non-reversible form of key that is safe to log.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}
