package sync

import (
	"log/slog"
	"path"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/openmined/fabsync/internal/utils"
)

// FolderTree resolves flat folder records into root to leaf name paths.
// It lives for a single run.
type FolderTree struct {
	folders map[string]fabricsdk.Folder
	paths   *lru.Cache[string, []string]
	logger  *slog.Logger
}

func NewFolderTree(folders []fabricsdk.Folder, logger *slog.Logger) *FolderTree {
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[string]fabricsdk.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	// size is always > 0, so New cannot fail
	paths, _ := lru.New[string, []string](len(byID) + 1)

	return &FolderTree{
		folders: byID,
		paths:   paths,
		logger:  logger,
	}
}

// FullPath returns the sanitized folder names from the workspace root down to id.
// The walk stops at a dangling parent or at the first folder it has already seen,
// which then becomes the root of the chain.
func (t *FolderTree) FullPath(id string) []string {
	if id == "" {
		return nil
	}

	if cached, ok := t.paths.Get(id); ok {
		return slices.Clone(cached)
	}

	var chain []string
	visited := make(map[string]struct{})

	for cur := id; cur != ""; {
		if _, seen := visited[cur]; seen {
			t.logger.Warn("folder cycle", "folder", id, "repeated", cur)
			break
		}

		folder, ok := t.folders[cur]
		if !ok {
			if cur != id {
				t.logger.Debug("dangling parent folder", "folder", id, "parent", cur)
			}
			break
		}

		visited[cur] = struct{}{}
		chain = append(chain, utils.SanitizeSegment(folder.DisplayName))
		cur = folder.ParentFolderID
	}

	slices.Reverse(chain)
	t.paths.Add(id, chain)

	return slices.Clone(chain)
}

// Dir returns the folder segments an item is placed under. Items without a
// folder, or with a folder that is not part of the workspace listing, live at the root.
func (t *FolderTree) Dir(item *fabricsdk.Item) []string {
	if item.FolderID == "" {
		return nil
	}

	if _, ok := t.folders[item.FolderID]; !ok {
		t.logger.Warn("unknown folder, placing item at root", "item", item.ID, "folder", item.FolderID)
		return nil
	}

	return t.FullPath(item.FolderID)
}

// ItemDirName is the directory an item's parts are written to, "<displayName>.<type>"
func ItemDirName(item *fabricsdk.Item) string {
	return utils.SanitizeSegment(item.DisplayName + "." + item.Type)
}

// ItemPath joins the folder segments and the item directory with forward slashes
func (t *FolderTree) ItemPath(item *fabricsdk.Item) string {
	segments := append(t.Dir(item), ItemDirName(item))
	return path.Join(segments...)
}
