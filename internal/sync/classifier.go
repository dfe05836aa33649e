package sync

import (
	"cmp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/fabsync/internal/fabricsdk"
)

// ChangeKind is the classification of a single divergence record
type ChangeKind string

const (
	ChangeNone        ChangeKind = ""
	ChangeSourceOnly  ChangeKind = "SourceOnly"
	ChangeTargetOnly  ChangeKind = "TargetOnly"
	ChangeConflicting ChangeKind = "Conflicting"
	ChangeModified    ChangeKind = "Modified"
)

// Outcome is the overall verdict of a classification
type Outcome string

const (
	OutcomeSynced  Outcome = "Synced"
	OutcomeChanges Outcome = "Changes"
)

// HeadAction is what the caller should offer given the workspace head and the local revision
type HeadAction string

const (
	ActionShowDiff HeadAction = "ShowDiff"
	ActionCheckout HeadAction = "Checkout"
)

const (
	changeAdded    = "added"
	changeModified = "modified"
	changeDeleted  = "deleted"

	conflictNone        = "none"
	conflictConflict    = "conflict"
	conflictSameChanges = "samechanges"
)

// Change is one divergence record keyed by the item's object id
type Change struct {
	ObjectID        string     `json:"objectId"`
	LogicalID       string     `json:"logicalId,omitempty"`
	DisplayName     string     `json:"displayName"`
	ItemType        string     `json:"itemType,omitempty"`
	Kind            ChangeKind `json:"kind,omitempty"`
	WorkspaceChange string     `json:"workspaceChange,omitempty"`
	RemoteChange    string     `json:"remoteChange,omitempty"`
}

// Classification is the result of Classify
type Classification struct {
	Outcome       Outcome
	WorkspaceHead string
	Changes       []Change
	// SyncSet holds the object ids that have a matching workspace item
	SyncSet mapset.Set[string]
	// Dropped holds the changes without a matching workspace item
	Dropped []Change
}

// Classify turns a git status payload into a change list and the set of items to sync
func Classify(status *fabricsdk.GitStatus, items []fabricsdk.Item) *Classification {
	c := &Classification{
		Outcome: OutcomeSynced,
		SyncSet: mapset.NewThreadUnsafeSet[string](),
	}
	if status == nil {
		return c
	}
	c.WorkspaceHead = status.WorkspaceHead

	byID := make(map[string]*fabricsdk.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	for i := range status.Changes {
		change := toChange(&status.Changes[i], byID)
		c.Changes = append(c.Changes, change)

		if _, ok := byID[change.ObjectID]; ok && change.ObjectID != "" {
			c.SyncSet.Add(change.ObjectID)
		} else {
			c.Dropped = append(c.Dropped, change)
		}
	}

	if len(c.Changes) > 0 {
		c.Outcome = OutcomeChanges
	}

	return c
}

// CompareHead decides between showing a diff (local checkout is current) and checking out
func CompareHead(workspaceHead, localRevision string) HeadAction {
	if workspaceHead != "" && strings.EqualFold(workspaceHead, localRevision) {
		return ActionShowDiff
	}
	return ActionCheckout
}

func toChange(gc *fabricsdk.GitChange, items map[string]*fabricsdk.Item) Change {
	objectID, logicalID := identifiers(gc)

	change := Change{
		ObjectID:        objectID,
		LogicalID:       logicalID,
		WorkspaceChange: gc.WorkspaceChange,
		RemoteChange:    gc.RemoteChange,
		Kind:            kindOf(gc),
	}

	item := items[objectID]

	change.DisplayName = cmp.Or(statusDisplayName(gc), itemField(item, func(i *fabricsdk.Item) string { return i.DisplayName }), objectID, logicalID)
	change.ItemType = cmp.Or(statusItemType(gc), itemField(item, func(i *fabricsdk.Item) string { return i.Type }))

	return change
}

// identifiers returns the canonical object id and the logical id of a record.
// The top level itemId names the same object and is used only when no object id is present.
func identifiers(gc *fabricsdk.GitChange) (string, string) {
	var objectID, logicalID string

	for _, ident := range []*fabricsdk.ItemIdentifier{metadataIdentifier(gc), gc.ItemIdentifier} {
		if ident == nil {
			continue
		}
		if objectID == "" {
			objectID = ident.ObjectID
		}
		if logicalID == "" {
			logicalID = ident.LogicalID
		}
	}

	if objectID == "" {
		objectID = gc.ItemID
	}

	return objectID, logicalID
}

func metadataIdentifier(gc *fabricsdk.GitChange) *fabricsdk.ItemIdentifier {
	if gc.ItemMetadata == nil {
		return nil
	}
	return gc.ItemMetadata.ItemIdentifier
}

func statusDisplayName(gc *fabricsdk.GitChange) string {
	if gc.ItemMetadata != nil && gc.ItemMetadata.DisplayName != "" {
		return gc.ItemMetadata.DisplayName
	}
	return gc.ItemDisplayName
}

func statusItemType(gc *fabricsdk.GitChange) string {
	if gc.ItemMetadata != nil && gc.ItemMetadata.ItemType != "" {
		return gc.ItemMetadata.ItemType
	}
	return gc.ItemType
}

func kindOf(gc *fabricsdk.GitChange) ChangeKind {
	if kind, ok := parseKind(gc.Status); ok {
		return kind
	}

	ws := strings.ToLower(gc.WorkspaceChange)
	remote := strings.ToLower(gc.RemoteChange)
	conflict := strings.ToLower(gc.ConflictType)

	wsChanged := ws != "" && ws != conflictNone
	remoteChanged := remote != "" && remote != conflictNone

	switch {
	case conflict == conflictConflict:
		return ChangeConflicting
	case wsChanged && remoteChanged && conflict == conflictSameChanges:
		return ChangeModified
	case wsChanged && remoteChanged:
		return ChangeConflicting
	case ws == changeModified || remote == changeModified:
		return ChangeModified
	case ws == changeAdded || remote == changeDeleted:
		return ChangeSourceOnly
	case ws == changeDeleted || remote == changeAdded:
		return ChangeTargetOnly
	default:
		return ChangeNone
	}
}

func parseKind(status string) (ChangeKind, bool) {
	for _, kind := range []ChangeKind{ChangeSourceOnly, ChangeTargetOnly, ChangeConflicting, ChangeModified} {
		if strings.EqualFold(status, string(kind)) {
			return kind, true
		}
	}
	if strings.EqualFold(status, "Conflict") {
		return ChangeConflicting, true
	}
	return ChangeNone, false
}

func itemField(item *fabricsdk.Item, field func(*fabricsdk.Item) string) string {
	if item == nil {
		return ""
	}
	return field(item)
}
