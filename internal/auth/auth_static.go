package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// accountClaims are the Entra ID claims that can name the signed-in account
type accountClaims struct {
	UPN               string `json:"upn,omitempty"`
	UniqueName        string `json:"unique_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	AppID             string `json:"appid,omitempty"`
	jwt.RegisteredClaims
}

// StaticSource hands out a pre-acquired token, e.g. from config or the environment
type StaticSource struct {
	token string
}

func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: strings.TrimSpace(token)}
}

func (s *StaticSource) Acquire(_ context.Context, _ string) (*Credential, error) {
	if s.token == "" {
		return nil, newAuthError("static", ErrNoSession)
	}
	return &Credential{
		Token:        s.token,
		AccountLabel: AccountLabel(s.token),
	}, nil
}

// AccountLabel extracts a display label from a JWT access token.
// The signature is not verified, the label is for display only.
// Opaque or malformed tokens yield an empty label.
func AccountLabel(token string) string {
	var claims accountClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return ""
	}

	for _, label := range []string{claims.UPN, claims.PreferredUsername, claims.UniqueName, claims.Subject, claims.AppID} {
		if label != "" {
			return label
		}
	}
	return ""
}
