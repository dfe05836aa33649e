package fabricsdk

import "time"

// Workspace is a Power BI group, the container of items
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type workspaceList struct {
	Value []Workspace `json:"value"`
}

// Item is one exportable artifact in a workspace (notebook, report, ...)
type Item struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	FolderID    string `json:"folderId,omitempty"`
	Description string `json:"description,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// Folder is a workspace folder. A missing ParentFolderID means the folder sits at the workspace root.
type Folder struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	ParentFolderID string `json:"parentFolderId,omitempty"`
	WorkspaceID    string `json:"workspaceId,omitempty"`
}

type page[T any] struct {
	Value             []T    `json:"value"`
	ContinuationToken string `json:"continuationToken,omitempty"`
	ContinuationURI   string `json:"continuationUri,omitempty"`
}

// ===================================================================================================

// ItemIdentifier identifies an item on both sides of a git connection
type ItemIdentifier struct {
	ObjectID  string `json:"objectId,omitempty"`
	LogicalID string `json:"logicalId,omitempty"`
}

// ItemMetadata describes the item a git change refers to
type ItemMetadata struct {
	ItemIdentifier *ItemIdentifier `json:"itemIdentifier,omitempty"`
	ItemType       string          `json:"itemType,omitempty"`
	DisplayName    string          `json:"displayName,omitempty"`
}

// GitChange is one unit of divergence between the workspace and its git branch.
// The service has shipped several shapes for this record, all of them are accepted.
type GitChange struct {
	ItemMetadata    *ItemMetadata   `json:"itemMetadata,omitempty"`
	ItemIdentifier  *ItemIdentifier `json:"itemIdentifier,omitempty"`
	ItemID          string          `json:"itemId,omitempty"`
	ItemDisplayName string          `json:"itemDisplayName,omitempty"`
	ItemType        string          `json:"itemType,omitempty"`
	WorkspaceChange string          `json:"workspaceChange,omitempty"`
	RemoteChange    string          `json:"remoteChange,omitempty"`
	ConflictType    string          `json:"conflictType,omitempty"`
	Status          string          `json:"status,omitempty"`
}

// GitStatus is the response of the git status endpoint
type GitStatus struct {
	WorkspaceHead    string      `json:"workspaceHead"`
	RemoteCommitHash string      `json:"remoteCommitHash,omitempty"`
	Changes          []GitChange `json:"changes"`
}

// ===================================================================================================

const (
	PayloadInlineBase64 = "InlineBase64"
)

// DefinitionPart is one file of an item definition
type DefinitionPart struct {
	Path        string `json:"path"`
	Payload     string `json:"payload"`
	PayloadType string `json:"payloadType"`
}

// ItemDefinition is the multi-part content of an item
type ItemDefinition struct {
	Format string           `json:"format,omitempty"`
	Parts  []DefinitionPart `json:"parts"`
}

type definitionResponse struct {
	Definition ItemDefinition `json:"definition"`
}

// ExportOpts are the optional parameters of a definition export
type ExportOpts struct {
	Format string // e.g. "ipynb" for notebooks; empty means the item default
}

// ExportSubmission is the outcome of submitting a definition export.
// Exactly one of Definition (200) or Location (202) is set.
type ExportSubmission struct {
	StatusCode  int
	Definition  *ItemDefinition
	Location    string
	OperationID string
	RetryAfter  time.Duration
}

// Accepted reports whether the service queued the export as a long running operation
func (s *ExportSubmission) Accepted() bool {
	return s.Definition == nil
}

// ===================================================================================================

// OperationStatus is the state of a long running operation
type OperationStatus string

const (
	OperationNotStarted OperationStatus = "NotStarted"
	OperationRunning    OperationStatus = "Running"
	OperationSucceeded  OperationStatus = "Succeeded"
	OperationFailed     OperationStatus = "Failed"
	OperationUndefined  OperationStatus = "Undefined"
)

// OperationState is the monitor resource of a long running operation
type OperationState struct {
	Status          OperationStatus `json:"status"`
	PercentComplete int             `json:"percentComplete,omitempty"`
	CreatedTime     string          `json:"createdTimeUtc,omitempty"`
	LastUpdatedTime string          `json:"lastUpdatedTimeUtc,omitempty"`
	Error           *APIErrorBody   `json:"error,omitempty"`
}
