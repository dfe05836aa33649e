package fabricsdk

import (
	"context"
	"fmt"
)

const (
	v1Items   = "/v1/workspaces/%s/items"
	v1Folders = "/v1/workspaces/%s/folders"

	// ceiling on continuation pages
	maxPages = 1000
)

// ListItems lists every item of a workspace, following continuation tokens
func (c *Client) ListItems(ctx context.Context, token, workspaceID string) ([]Item, error) {
	return listAll[Item](ctx, c, token, c.fabric(v1Items, workspaceID), nil, "list items")
}

// ListFolders lists every folder of a workspace, nested folders included
func (c *Client) ListFolders(ctx context.Context, token, workspaceID string) ([]Folder, error) {
	query := map[string]string{"recursive": "true"}
	return listAll[Folder](ctx, c, token, c.fabric(v1Folders, workspaceID), query, "list folders")
}

func listAll[T any](ctx context.Context, c *Client, token, url string, query map[string]string, operation string) ([]T, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var all []T
	continuation := ""

	for range maxPages {
		r := c.request(ctx, token).SetQueryParams(query)
		if continuation != "" {
			r.SetQueryParam("continuationToken", continuation)
		}

		resp, err := r.Get(url)
		if err := handleAPIError(resp, err, operation); err != nil {
			return nil, err
		}

		var p page[T]
		if err := resp.Unmarshal(&p); err != nil {
			return nil, fmt.Errorf("fabric: %s: decode: %w", operation, err)
		}

		all = append(all, p.Value...)
		if p.ContinuationToken == "" {
			return all, nil
		}
		continuation = p.ContinuationToken
	}

	return nil, fmt.Errorf("fabric: %s: more than %d pages", operation, maxPages)
}
