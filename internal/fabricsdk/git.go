package fabricsdk

import (
	"context"
	"fmt"
	"net/http"
)

const (
	v1GitStatus = "/v1/workspaces/%s/git/status"
)

// GetGitStatus returns the diff between the workspace and its connected git branch.
// ErrGitNotConfigured is returned when the workspace has no git connection.
func (c *Client) GetGitStatus(ctx context.Context, token, workspaceID string) (*GitStatus, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	resp, err := c.request(ctx, token).Get(c.fabric(v1GitStatus, workspaceID))
	if err == nil && resp.GetStatusCode() == http.StatusNotFound {
		return nil, ErrGitNotConfigured
	}
	if err := handleAPIError(resp, err, "git status"); err != nil {
		return nil, err
	}

	var status GitStatus
	if err := resp.Unmarshal(&status); err != nil {
		return nil, fmt.Errorf("fabric: git status: decode: %w", err)
	}

	return &status, nil
}
