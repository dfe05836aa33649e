package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAuthorityURL = "https://login.microsoftonline.com"
)

var (
	ErrNoTenant       = errors.New("auth: tenant id missing")
	ErrNoClientID     = errors.New("auth: client id missing")
	ErrNoClientSecret = errors.New("auth: client secret missing")
)

// ClientCredentialsConfig configures a service principal login
type ClientCredentialsConfig struct {
	AuthorityURL string // defaults to DefaultAuthorityURL
	TenantID     string
	ClientID     string
	ClientSecret string
}

func (c *ClientCredentialsConfig) Validate() error {
	if c.TenantID == "" {
		return ErrNoTenant
	}
	if c.ClientID == "" {
		return ErrNoClientID
	}
	if c.ClientSecret == "" {
		return ErrNoClientSecret
	}
	return nil
}

func (c *ClientCredentialsConfig) tokenURL() string {
	authority := c.AuthorityURL
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(authority, "/"), c.TenantID)
}

// ClientCredentialsSource acquires app-only tokens for a service principal
type ClientCredentialsSource struct {
	config *ClientCredentialsConfig
}

func NewClientCredentialsSource(config *ClientCredentialsConfig) (*ClientCredentialsSource, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ClientCredentialsSource{config: config}, nil
}

func (s *ClientCredentialsSource) Acquire(ctx context.Context, scope string) (*Credential, error) {
	cc := &clientcredentials.Config{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		TokenURL:     s.config.tokenURL(),
		Scopes:       []string{scope},
	}

	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, newAuthError("client credentials", err)
	}
	if tok.AccessToken == "" {
		return nil, newAuthError("client credentials", ErrNoSession)
	}

	label := AccountLabel(tok.AccessToken)
	if label == "" {
		label = s.config.ClientID
	}

	return &Credential{Token: tok.AccessToken, AccountLabel: label}, nil
}
