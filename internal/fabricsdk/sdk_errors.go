package fabricsdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	// ErrGitNotConfigured is returned by GetGitStatus when the workspace has no git connection.
	// It is an actionable state for the caller, not a failure of the request.
	ErrGitNotConfigured = errors.New("fabric: git not configured for workspace")

	ErrNoToken      = errors.New("fabric: bearer token missing")
	ErrNoLocation   = errors.New("fabric: accepted operation without location header")
	ErrEmptyPayload = errors.New("fabric: empty response body")
)

const maxErrorBody = 2048

// APIErrorBody is the error envelope returned by the Fabric API
type APIErrorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// RemoteError is returned for every non-2xx response, except for the
// distinguished 404 on the git status endpoint.
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
	ErrorCode  string
	Message    string
	RequestID  string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("fabric: %s: http %d: %s", e.Operation, e.StatusCode, e.Body)
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("fabric: %s: http %d: %s - %s", e.Operation, e.StatusCode, e.ErrorCode, e.Message)
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// IsThrottled reports whether the remote rejected the call for rate limiting
func (e *RemoteError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether the bearer token was rejected
func (e *RemoteError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func newRemoteError(operation string, resp *req.Response) *RemoteError {
	body := strings.TrimSpace(resp.String())
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}

	remoteErr := &RemoteError{
		Operation:  operation,
		StatusCode: resp.GetStatusCode(),
		Body:       body,
		RequestID:  resp.GetHeader(HeaderRequestID),
	}

	var apiErr APIErrorBody
	if body != "" && jsonUnmarshal(resp.Bytes(), &apiErr) == nil {
		remoteErr.ErrorCode = apiErr.ErrorCode
		remoteErr.Message = apiErr.Message
		if remoteErr.RequestID == "" {
			remoteErr.RequestID = apiErr.RequestID
		}
	}

	return remoteErr
}

// handleAPIError maps a transport error or a non-success response to an error.
// The accepted status codes are passed explicitly since some operations treat 202 as success.
func handleAPIError(resp *req.Response, requestErr error, operation string, accepted ...int) error {
	if requestErr != nil {
		return fmt.Errorf("fabric: http request error: %s: %w", operation, requestErr)
	}

	if len(accepted) == 0 {
		accepted = []int{http.StatusOK}
	}

	status := resp.GetStatusCode()
	for _, code := range accepted {
		if status == code {
			return nil
		}
	}

	return newRemoteError(operation, resp)
}
