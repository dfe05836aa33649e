package sync

import "time"

// RunStatus is the overall status of a sync run
type RunStatus string

const (
	StatusSynced         RunStatus = "Synced"
	StatusPartialFailure RunStatus = "PartialFailure"
	StatusNotConfigured  RunStatus = "NotConfigured"
	StatusCancelled      RunStatus = "Cancelled"
	StatusError          RunStatus = "Error"
)

// ItemRef identifies an item in a result
type ItemRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type,omitempty"`
	Path        string `json:"path,omitempty"`
}

type SucceededItem struct {
	ItemRef
	Written   int   `json:"written"`
	Unchanged int   `json:"unchanged"`
	Pruned    int   `json:"pruned,omitempty"`
	Bytes     int64 `json:"bytes"`
}

type FailedItem struct {
	ItemRef
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
	// Written lists the parts that reached disk before the failure
	Written []string `json:"written,omitempty"`
	Err     error    `json:"-"`
}

type SkippedItem struct {
	ItemRef
	Reason string `json:"reason"`
}

// SyncRequest selects what a run exports
type SyncRequest struct {
	WorkspaceID string
	// ItemIDs syncs exactly these items, bypassing git status
	ItemIDs []string
	// All syncs every item of the workspace, bypassing git status
	All bool
	// Types restricts the selection to the given item types, e.g. "Notebook"
	Types []string
	// Include restricts the selection to item paths matching one of these globs
	Include []string
	// Format is passed to the export, e.g. "ipynb"
	Format string
	Prune  bool
	DryRun bool
}

// SyncResult is the caller facing outcome of a run
type SyncResult struct {
	RunID         string          `json:"runId"`
	WorkspaceID   string          `json:"workspaceId"`
	Status        RunStatus       `json:"status"`
	Succeeded     []SucceededItem `json:"succeeded"`
	Failed        []FailedItem    `json:"failed"`
	Skipped       []SkippedItem   `json:"skipped"`
	Changes       []Change        `json:"changes,omitempty"`
	WorkspaceHead string          `json:"workspaceHead,omitempty"`
	LocalRevision string          `json:"localRevision,omitempty"`
	Action        HeadAction      `json:"action,omitempty"`
	DryRun        bool            `json:"dryRun,omitempty"`
	Duration      time.Duration   `json:"duration"`
	Error         string          `json:"error,omitempty"`
}

// StatusReport is the outcome of Engine.Status
type StatusReport struct {
	WorkspaceID   string     `json:"workspaceId"`
	Configured    bool       `json:"configured"`
	Outcome       Outcome    `json:"outcome,omitempty"`
	Changes       []Change   `json:"changes,omitempty"`
	Dropped       []Change   `json:"dropped,omitempty"`
	WorkspaceHead string     `json:"workspaceHead,omitempty"`
	LocalRevision string     `json:"localRevision,omitempty"`
	Action        HeadAction `json:"action,omitempty"`
}

func (r *SyncResult) finalize(start time.Time) {
	r.Duration = time.Since(start)

	switch r.Status {
	case StatusError, StatusNotConfigured, StatusCancelled:
		return
	}

	for _, f := range r.Failed {
		if f.Kind == KindCancelled {
			r.Status = StatusCancelled
			return
		}
	}

	for _, sk := range r.Skipped {
		if sk.Reason == reasonCancelled {
			r.Status = StatusCancelled
			return
		}
	}

	if len(r.Failed) > 0 {
		r.Status = StatusPartialFailure
		return
	}
	r.Status = StatusSynced
}
