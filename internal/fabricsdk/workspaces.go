package fabricsdk

import (
	"context"
)

const (
	v1Groups = "/v1.0/myorg/groups"
)

// ListWorkspaces lists the workspaces visible to the token
func (c *Client) ListWorkspaces(ctx context.Context, token string) ([]Workspace, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var list workspaceList
	resp, err := c.request(ctx, token).Get(c.powerBIURL + v1Groups)
	if err := handleAPIError(resp, err, "list workspaces"); err != nil {
		return nil, err
	}
	if err := resp.Unmarshal(&list); err != nil {
		return nil, err
	}

	return list.Value, nil
}
