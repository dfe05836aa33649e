package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/goccy/go-json"
)

var ErrAzureCLINotAvailable = errors.New("auth: az is not available on this system")

type azAccessToken struct {
	AccessToken  string `json:"accessToken"`
	ExpiresOn    string `json:"expiresOn"`
	Subscription string `json:"subscription"`
	Tenant       string `json:"tenant"`
}

// AzureCLISource borrows the session of a logged in Azure CLI
type AzureCLISource struct {
	// Command defaults to "az"
	Command string
}

func (s *AzureCLISource) Acquire(ctx context.Context, scope string) (*Credential, error) {
	command := s.Command
	if command == "" {
		command = "az"
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, newAuthError("azure cli", ErrAzureCLINotAvailable)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "account", "get-access-token", "--scope", scope, "--output", "json")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "az login") {
			return nil, newAuthError("azure cli", fmt.Errorf("%w: %s", ErrNoSession, msg))
		}
		return nil, newAuthError("azure cli", fmt.Errorf("get-access-token failed: %q: %w", msg, err))
	}

	var tok azAccessToken
	if err := json.Unmarshal(stdout.Bytes(), &tok); err != nil {
		return nil, newAuthError("azure cli", fmt.Errorf("decode token: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, newAuthError("azure cli", ErrNoSession)
	}

	return &Credential{Token: tok.AccessToken, AccountLabel: AccountLabel(tok.AccessToken)}, nil
}
