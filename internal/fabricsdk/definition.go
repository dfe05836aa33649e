package fabricsdk

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	v1GetDefinition = "/v1/workspaces/%s/items/%s/getDefinition"
	resultSuffix    = "/result"
)

// SubmitDefinitionExport asks the service for the definition of an item.
// The service either answers synchronously (200, Definition set) or accepts
// the export as a long running operation (202, Location set).
func (c *Client) SubmitDefinitionExport(ctx context.Context, token, workspaceID, itemID string, opts *ExportOpts) (*ExportSubmission, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	r := c.request(ctx, token)
	if opts != nil && opts.Format != "" {
		r.SetQueryParam("format", opts.Format)
	}

	resp, err := r.Post(c.fabric(v1GetDefinition, workspaceID, itemID))
	if err := handleAPIError(resp, err, "get definition", http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}

	sub := &ExportSubmission{StatusCode: resp.GetStatusCode()}

	if sub.StatusCode == http.StatusOK {
		def, err := decodeDefinition(resp.Bytes(), "get definition")
		if err != nil {
			return nil, err
		}
		sub.Definition = def
		return sub, nil
	}

	sub.Location = resp.GetHeader(HeaderLocation)
	sub.OperationID = resp.GetHeader(HeaderOperationID)
	sub.RetryAfter = parseRetryAfter(resp.GetHeader(HeaderRetryAfter))
	if sub.Location == "" {
		return nil, &RemoteError{
			Operation:  "get definition",
			StatusCode: sub.StatusCode,
			Body:       ErrNoLocation.Error(),
		}
	}

	return sub, nil
}

// GetOperationState fetches the monitor resource of a long running operation
func (c *Client) GetOperationState(ctx context.Context, token, location string) (*OperationState, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	resp, err := c.request(ctx, token).Get(location)
	if err := handleAPIError(resp, err, "operation state"); err != nil {
		return nil, err
	}

	var state OperationState
	if err := resp.Unmarshal(&state); err != nil {
		return nil, fmt.Errorf("fabric: operation state: decode: %w", err)
	}

	return &state, nil
}

// GetOperationResult fetches the definition produced by a succeeded operation
func (c *Client) GetOperationResult(ctx context.Context, token, location string) (*ItemDefinition, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	resp, err := c.request(ctx, token).Get(ResultLocation(location))
	if err := handleAPIError(resp, err, "operation result"); err != nil {
		return nil, err
	}

	return decodeDefinition(resp.Bytes(), "operation result")
}

// ResultLocation returns the result resource of an operation monitor
func ResultLocation(location string) string {
	base, query, hasQuery := strings.Cut(location, "?")
	base = strings.TrimRight(base, "/") + resultSuffix
	if hasQuery {
		return base + "?" + query
	}
	return base
}

func decodeDefinition(body []byte, operation string) (*ItemDefinition, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("fabric: %s: %w", operation, ErrEmptyPayload)
	}

	var resp definitionResponse
	if err := jsonUnmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fabric: %s: decode: %w", operation, err)
	}

	return &resp.Definition, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
