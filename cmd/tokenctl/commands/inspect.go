package commands

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// TokenInfo is the decoded form of a JWT access token
type TokenInfo struct {
	Header    map[string]interface{} `json:"header"`
	Claims    jwt.MapClaims          `json:"claims"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	Expired   bool                   `json:"expired"`
}

// InspectToken decodes accessToken without verifying its signature.
func InspectToken(accessToken string, now time.Time) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return nil, fmt.Errorf("not a JWT: %w", err)
	}

	info := &TokenInfo{Header: token.Header, Claims: claims}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
		info.Expired = !now.Before(t)
	}
	return info, nil
}

func NewInspectCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [token]",
		Short: "Decode a JWT access token",
		Long: `Decode the header and claims of a JWT access token. The signature is NOT
verified. The token is read from stdin when no argument is given.

Examples:
  tokenctl inspect eyJhbGciOi...
  tokenctl client-credentials --client-id svc --raw | tokenctl inspect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("no token given")
				}
				raw = line
			}

			info, err := InspectToken(strings.TrimSpace(raw), time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}

	return cmd
}
