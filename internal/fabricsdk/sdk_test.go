package fabricsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(&Config{FabricURL: srv.URL, PowerBIURL: srv.URL})
	t.Cleanup(c.Close)
	return c
}

func TestClient_ListWorkspaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.0/myorg/groups", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"w1","name":"Sales"},{"id":"w2","name":"Ops"}]}`))
	})

	c := newTestClient(t, mux)
	ws, err := c.ListWorkspaces(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, Workspace{ID: "w1", Name: "Sales"}, ws[0])
}

func TestClient_ListItems_FollowsContinuation(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/workspaces/W1/items", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("continuationToken") == "" {
			_, _ = w.Write([]byte(`{"value":[{"id":"a","displayName":"NB1","type":"Notebook"}],"continuationToken":"next"}`))
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("continuationToken"))
		_, _ = w.Write([]byte(`{"value":[{"id":"b","displayName":"R1","type":"Report","folderId":"f1"}]}`))
	})

	c := newTestClient(t, mux)
	items, err := c.ListItems(context.Background(), "tok", "W1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "f1", items[1].FolderID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_ListFolders_Recursive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/workspaces/W1/folders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("recursive"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"f1","displayName":"Root"},{"id":"f2","displayName":"Child","parentFolderId":"f1"}]}`))
	})

	c := newTestClient(t, mux)
	folders, err := c.ListFolders(context.Background(), "tok", "W1")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "f1", folders[1].ParentFolderID)
}

func TestClient_GetGitStatus(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/workspaces/W1/git/status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errorCode":"WorkspaceNotConnectedToGit"}`, http.StatusNotFound)
		})
		c := newTestClient(t, mux)
		_, err := c.GetGitStatus(context.Background(), "tok", "W1")
		assert.ErrorIs(t, err, ErrGitNotConfigured)
	})

	t.Run("changes", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/workspaces/W1/git/status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"workspaceHead":"deadbeef","changes":[
				{"itemMetadata":{"itemIdentifier":{"objectId":"a","logicalId":"l-a"},"itemType":"Notebook","displayName":"NB1"},"workspaceChange":"Modified","conflictType":"None"}]}`))
		})
		c := newTestClient(t, mux)
		status, err := c.GetGitStatus(context.Background(), "tok", "W1")
		require.NoError(t, err)
		assert.Equal(t, "deadbeef", status.WorkspaceHead)
		require.Len(t, status.Changes, 1)
		assert.Equal(t, "a", status.Changes[0].ItemMetadata.ItemIdentifier.ObjectID)
		assert.Equal(t, "Modified", status.Changes[0].WorkspaceChange)
	})

	t.Run("server error is a remote error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/workspaces/W1/git/status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"errorCode":"InternalError","message":"boom"}`))
		})
		c := newTestClient(t, mux)
		_, err := c.GetGitStatus(context.Background(), "tok", "W1")
		var remoteErr *RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
		assert.Equal(t, "InternalError", remoteErr.ErrorCode)
		assert.Equal(t, "boom", remoteErr.Message)
	})
}

func TestClient_SubmitDefinitionExport(t *testing.T) {
	t.Run("synchronous", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/workspaces/W1/items/a/getDefinition", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "ipynb", r.URL.Query().Get("format"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"definition":{"parts":[{"path":"notebook-content.py","payload":"cHJpbnQoMSk=","payloadType":"InlineBase64"}]}}`))
		})
		c := newTestClient(t, mux)
		sub, err := c.SubmitDefinitionExport(context.Background(), "tok", "W1", "a", &ExportOpts{Format: "ipynb"})
		require.NoError(t, err)
		assert.False(t, sub.Accepted())
		require.Len(t, sub.Definition.Parts, 1)
		assert.Equal(t, "notebook-content.py", sub.Definition.Parts[0].Path)
	})

	t.Run("accepted", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/workspaces/W1/items/a/getDefinition", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderLocation, "https://example.invalid/v1/operations/op1")
			w.Header().Set(HeaderOperationID, "op1")
			w.Header().Set(HeaderRetryAfter, "3")
			w.WriteHeader(http.StatusAccepted)
		})
		c := newTestClient(t, mux)
		sub, err := c.SubmitDefinitionExport(context.Background(), "tok", "W1", "a", nil)
		require.NoError(t, err)
		assert.True(t, sub.Accepted())
		assert.Equal(t, "https://example.invalid/v1/operations/op1", sub.Location)
		assert.Equal(t, "op1", sub.OperationID)
		assert.Equal(t, 3*time.Second, sub.RetryAfter)
	})

	t.Run("accepted without location", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/workspaces/W1/items/a/getDefinition", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		c := newTestClient(t, mux)
		_, err := c.SubmitDefinitionExport(context.Background(), "tok", "W1", "a", nil)
		var remoteErr *RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, http.StatusAccepted, remoteErr.StatusCode)
	})

	t.Run("rejected", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/workspaces/W1/items/a/getDefinition", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderRequestID, "req-42")
			w.WriteHeader(http.StatusForbidden)
		})
		c := newTestClient(t, mux)
		_, err := c.SubmitDefinitionExport(context.Background(), "tok", "W1", "a", nil)
		var remoteErr *RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.True(t, remoteErr.IsUnauthorized())
		assert.Equal(t, "req-42", remoteErr.RequestID)
		assert.Contains(t, err.Error(), "(request req-42)")
	})
}

func TestClient_OperationStateAndResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/operations/op1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"Failed","error":{"errorCode":"ExportFailed","message":"nope"}}`))
	})
	mux.HandleFunc("GET /v1/operations/op1/result", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"definition":{"parts":[{"path":"a.json","payload":"e30=","payloadType":"InlineBase64"}]}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(&Config{FabricURL: srv.URL})

	state, err := c.GetOperationState(context.Background(), "tok", srv.URL+"/v1/operations/op1")
	require.NoError(t, err)
	assert.Equal(t, OperationFailed, state.Status)
	require.NotNil(t, state.Error)
	assert.Equal(t, "ExportFailed", state.Error.ErrorCode)

	def, err := c.GetOperationResult(context.Background(), "tok", srv.URL+"/v1/operations/op1")
	require.NoError(t, err)
	require.Len(t, def.Parts, 1)
	assert.Equal(t, "a.json", def.Parts[0].Path)
}

func TestClient_RequiresToken(t *testing.T) {
	c := New(nil)
	_, err := c.ListItems(context.Background(), "", "W1")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = c.GetGitStatus(context.Background(), "", "W1")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestResultLocation(t *testing.T) {
	assert.Equal(t, "https://h/v1/operations/x/result", ResultLocation("https://h/v1/operations/x"))
	assert.Equal(t, "https://h/v1/operations/x/result", ResultLocation("https://h/v1/operations/x/"))
	assert.Equal(t, "https://h/v1/operations/x/result?a=b", ResultLocation("https://h/v1/operations/x?a=b"))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}

func TestClient_RateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(&Config{FabricURL: srv.URL, PowerBIURL: srv.URL, RequestsPerSecond: 0.1, Burst: 1})
	t.Cleanup(c.Close)

	_, err := c.ListWorkspaces(context.Background(), "tok")
	require.NoError(t, err)

	// the next token is ten seconds away, the limiter refuses to wait past the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListWorkspaces(ctx, "tok")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
