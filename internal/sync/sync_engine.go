package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/openmined/fabsync/internal/auth"
	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/openmined/fabsync/internal/gitrev"
	"github.com/openmined/fabsync/internal/utils"
	"github.com/openmined/fabsync/internal/workspace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPathCollision = errors.New("item path already claimed")
	ErrReservedPath  = errors.New("item path is reserved for sync metadata")
)

const (
	reasonNoMatchingItem = "no matching item in workspace"
	reasonNotFound       = "item not found in workspace"
	reasonIgnored        = "matched ignore file"
	reasonNotIncluded    = "not matched by include patterns"
	reasonCancelled      = "run cancelled before item started"
)

// RemoteClient is the subset of the Fabric client a sync run needs
type RemoteClient interface {
	Exporter
	ListItems(ctx context.Context, token, workspaceID string) ([]fabricsdk.Item, error)
	ListFolders(ctx context.Context, token, workspaceID string) ([]fabricsdk.Folder, error)
	GetGitStatus(ctx context.Context, token, workspaceID string) (*fabricsdk.GitStatus, error)
}

// EngineConfig carries every collaborator of the engine. Nothing is looked up globally.
type EngineConfig struct {
	Client      RemoteClient
	Credentials auth.Source
	// Revisions is optional, without it no local revision is reported
	Revisions gitrev.Inspector
	// Root is the local git tracked directory items are written to
	Root string
	// Filesystem replaces the OS filesystem rooted at Root
	Filesystem billy.Filesystem
	Scope      string
	Workers    int
	Export     ExportDriverConfig
	Logger     *slog.Logger
}

type Engine struct {
	config EngineConfig
	logger *slog.Logger
}

func NewEngine(config *EngineConfig) (*Engine, error) {
	if config.Client == nil {
		return nil, ErrNoClient
	}
	if config.Credentials == nil {
		return nil, ErrNoCredentials
	}

	cfg := *config
	if cfg.Scope == "" {
		cfg.Scope = fabricsdk.Scope
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{config: cfg, logger: cfg.Logger}, nil
}

// Status classifies the workspace's git divergence and compares its head with the local checkout
func (e *Engine) Status(ctx context.Context, workspaceID string) (*StatusReport, error) {
	if workspaceID == "" {
		return nil, ErrNoWorkspaceID
	}

	cred, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{WorkspaceID: workspaceID}

	status, err := e.config.Client.GetGitStatus(ctx, cred.Token, workspaceID)
	if errors.Is(err, fabricsdk.ErrGitNotConfigured) {
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get git status: %w", err)
	}
	report.Configured = true

	items, err := e.config.Client.ListItems(ctx, cred.Token, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	c := Classify(status, items)
	report.Outcome = c.Outcome
	report.Changes = c.Changes
	report.Dropped = c.Dropped
	report.WorkspaceHead = c.WorkspaceHead
	report.LocalRevision = e.localRevision(ctx)
	report.Action = CompareHead(report.WorkspaceHead, report.LocalRevision)

	return report, nil
}

type plannedItem struct {
	item fabricsdk.Item
	ref  ItemRef
}

type itemOutcome struct {
	succeeded *SucceededItem
	failed    *FailedItem
	skipped   *SkippedItem
}

// Sync exports the selected items and writes their definitions below the root.
// Per item failures are collected in the result. The returned error is set only
// when the whole run failed, the result status is then Error.
func (e *Engine) Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{
		RunID:       uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		DryRun:      req.DryRun,
		Succeeded:   []SucceededItem{},
		Failed:      []FailedItem{},
		Skipped:     []SkippedItem{},
	}
	logger := e.logger.With("run", result.RunID, "workspace", req.WorkspaceID)

	fail := func(err error) (*SyncResult, error) {
		result.Status = StatusError
		if ctx.Err() != nil {
			result.Status = StatusCancelled
			err = cancelled(err)
		}
		result.Error = err.Error()
		result.finalize(start)
		logger.Error("sync failed", "error", err)
		return result, err
	}

	if req.WorkspaceID == "" {
		return fail(ErrNoWorkspaceID)
	}

	include, err := NewIncludeFilter(req.Include)
	if err != nil {
		return fail(err)
	}

	cred, err := e.acquire(ctx)
	if err != nil {
		return fail(err)
	}

	ws, err := workspace.NewWorkspace(e.config.Root)
	if err != nil {
		return fail(fmt.Errorf("resolve sync root: %w", err))
	}

	// git status goes first, a workspace without git connection gets no further calls
	var status *fabricsdk.GitStatus
	gitMode := len(req.ItemIDs) == 0 && !req.All
	if gitMode {
		status, err = e.config.Client.GetGitStatus(ctx, cred.Token, req.WorkspaceID)
		if errors.Is(err, fabricsdk.ErrGitNotConfigured) {
			logger.Info("git is not configured for workspace")
			result.Status = StatusNotConfigured
			result.finalize(start)
			return result, nil
		}
		if err != nil {
			return fail(fmt.Errorf("get git status: %w", err))
		}
		result.WorkspaceHead = status.WorkspaceHead
	}

	// the root is only touched once there is something to sync into it
	if !req.DryRun {
		if err := ws.Setup(); err != nil {
			return fail(fmt.Errorf("prepare sync root: %w", err))
		}
		defer func() {
			if err := ws.Unlock(); err != nil {
				logger.Warn("failed to release sync root", "error", err)
			}
		}()
	}

	ignore := NewSyncIgnoreList(ws.IgnorePath)
	ignore.Load()

	items, folders, err := e.listWorkspace(ctx, cred.Token, req.WorkspaceID)
	if err != nil {
		return fail(err)
	}

	var selected []fabricsdk.Item
	switch {
	case len(req.ItemIDs) > 0:
		selected = e.selectByID(items, req.ItemIDs, result)
	case req.All:
		selected = items
	default:
		c := Classify(status, items)
		result.Changes = c.Changes
		for _, d := range c.Dropped {
			result.Skipped = append(result.Skipped, SkippedItem{
				ItemRef: ItemRef{ID: d.ObjectID, DisplayName: d.DisplayName, Type: d.ItemType},
				Reason:  reasonNoMatchingItem,
			})
		}
		for _, item := range items {
			if c.SyncSet.Contains(item.ID) {
				selected = append(selected, item)
			}
		}
		logger.Info("classified changes", "outcome", c.Outcome, "changes", len(c.Changes), "sync", c.SyncSet.Cardinality(), "dropped", len(c.Dropped))
	}

	result.LocalRevision = e.localRevision(ctx)
	if result.WorkspaceHead != "" {
		result.Action = CompareHead(result.WorkspaceHead, result.LocalRevision)
	}

	selected = filterTypes(selected, req.Types)
	tree := NewFolderTree(folders, logger)
	plan := e.plan(selected, tree, ignore, include, result)

	filesystem := e.config.Filesystem
	if filesystem == nil {
		filesystem = osfs.New(ws.Root)
	}
	materializer := NewMaterializer(filesystem, &MaterializerOpts{Prune: req.Prune, DryRun: req.DryRun})

	exportConfig := e.config.Export
	if req.Format != "" {
		exportConfig.Format = req.Format
	}
	driver := NewExportDriver(e.config.Client, &exportConfig, logger)

	outcomes := make([]itemOutcome, len(plan))
	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for i := range plan {
		g.Go(func() error {
			outcomes[i] = e.syncItem(ctx, driver, materializer, cred.Token, req.WorkspaceID, &plan[i], logger)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch {
		case o.succeeded != nil:
			result.Succeeded = append(result.Succeeded, *o.succeeded)
		case o.failed != nil:
			result.Failed = append(result.Failed, *o.failed)
		case o.skipped != nil:
			result.Skipped = append(result.Skipped, *o.skipped)
		}
	}

	result.finalize(start)

	logger.Info("sync finished",
		"status", result.Status,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, nil
}

func (e *Engine) syncItem(ctx context.Context, driver *ExportDriver, materializer *Materializer, token, workspaceID string, p *plannedItem, logger *slog.Logger) itemOutcome {
	if ctx.Err() != nil {
		return itemOutcome{skipped: &SkippedItem{ItemRef: p.ref, Reason: reasonCancelled}}
	}

	failed := func(err error, written []string) itemOutcome {
		failure := newItemFailure(p.item.ID, err)
		logger.Warn("item failed", "item", p.ref.Path, "kind", failure.Kind, "written", len(written), "error", err)
		return itemOutcome{failed: &FailedItem{ItemRef: p.ref, Kind: failure.Kind, Reason: err.Error(), Written: written, Err: failure}}
	}

	def, err := driver.Export(ctx, token, workspaceID, p.item.ID)
	if err != nil {
		return failed(err, nil)
	}

	m, err := materializer.Materialize(filepath.FromSlash(p.ref.Path), def.Parts)
	if err != nil {
		// parts written before the failure stay on disk
		return failed(err, m.Written)
	}

	logger.Info("item synced",
		"item", p.ref.Path,
		"written", len(m.Written),
		"unchanged", len(m.Unchanged),
		"pruned", len(m.Pruned),
		"size", humanize.Bytes(uint64(m.Bytes)),
	)

	return itemOutcome{succeeded: &SucceededItem{
		ItemRef:   p.ref,
		Written:   len(m.Written),
		Unchanged: len(m.Unchanged),
		Pruned:    len(m.Pruned),
		Bytes:     m.Bytes,
	}}
}

type claim struct {
	key    string
	itemID string
}

// plan resolves item paths and applies the ignore and include rules.
// An item whose directory equals, contains or lies inside an already claimed
// directory fails, so no item ever writes or prunes inside another.
func (e *Engine) plan(items []fabricsdk.Item, tree *FolderTree, ignore *SyncIgnoreList, include *IncludeFilter, result *SyncResult) []plannedItem {
	plan := make([]plannedItem, 0, len(items))
	claimed := make([]claim, 0, len(items))

	reject := func(item fabricsdk.Item, ref ItemRef, err error) {
		fsErr := &FilesystemError{Op: "plan", Path: ref.Path, Err: err}
		result.Failed = append(result.Failed, FailedItem{ItemRef: ref, Kind: KindFilesystem, Reason: fsErr.Error(), Err: newItemFailure(item.ID, fsErr)})
	}

	for _, item := range items {
		ref := ItemRef{
			ID:          item.ID,
			DisplayName: item.DisplayName,
			Type:        item.Type,
			Path:        tree.ItemPath(&item),
		}

		if ignore.ShouldIgnore(ref.Path) {
			result.Skipped = append(result.Skipped, SkippedItem{ItemRef: ref, Reason: reasonIgnored})
			continue
		}
		if !include.Matches(ref.Path) {
			result.Skipped = append(result.Skipped, SkippedItem{ItemRef: ref, Reason: reasonNotIncluded})
			continue
		}

		if workspace.IsMetadataPath(ref.Path) {
			reject(item, ref, ErrReservedPath)
			continue
		}

		key := strings.ToLower(ref.Path)
		if i := slices.IndexFunc(claimed, func(c claim) bool { return pathsOverlap(c.key, key) }); i >= 0 {
			reject(item, ref, fmt.Errorf("%w by item %s", ErrPathCollision, claimed[i].itemID))
			continue
		}
		claimed = append(claimed, claim{key: key, itemID: item.ID})

		plan = append(plan, plannedItem{item: item, ref: ref})
	}

	return plan
}

// pathsOverlap reports whether two slash separated paths are equal or one is
// a segment prefix of the other
func pathsOverlap(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return a == b || strings.HasPrefix(b, a+"/")
}

func (e *Engine) selectByID(items []fabricsdk.Item, ids []string, result *SyncResult) []fabricsdk.Item {
	byID := make(map[string]fabricsdk.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	seen := make(map[string]struct{}, len(ids))
	selected := make([]fabricsdk.Item, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		item, ok := byID[id]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedItem{ItemRef: ItemRef{ID: id}, Reason: reasonNotFound})
			continue
		}
		selected = append(selected, item)
	}
	return selected
}

func filterTypes(items []fabricsdk.Item, types []string) []fabricsdk.Item {
	if len(types) == 0 {
		return items
	}
	return slices.DeleteFunc(slices.Clone(items), func(item fabricsdk.Item) bool {
		return !slices.ContainsFunc(types, func(t string) bool { return strings.EqualFold(t, item.Type) })
	})
}

// listWorkspace lists items and folders concurrently
func (e *Engine) listWorkspace(ctx context.Context, token, workspaceID string) ([]fabricsdk.Item, []fabricsdk.Folder, error) {
	var (
		items   []fabricsdk.Item
		folders []fabricsdk.Folder
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if items, err = e.config.Client.ListItems(gctx, token, workspaceID); err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if folders, err = e.config.Client.ListFolders(gctx, token, workspaceID); err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return items, folders, nil
}

func (e *Engine) acquire(ctx context.Context) (*auth.Credential, error) {
	cred, err := e.config.Credentials.Acquire(ctx, e.config.Scope)
	if err == nil && (cred == nil || cred.Token == "") {
		err = auth.ErrNoSession
	}
	if err != nil {
		var authErr *auth.AuthError
		if !errors.As(err, &authErr) {
			err = &auth.AuthError{Source: "credential", Err: err}
		}
		return nil, fmt.Errorf("acquire credential: %w", err)
	}

	e.logger.Debug("credential acquired", "account", cred.AccountLabel)
	return cred, nil
}

func (e *Engine) localRevision(ctx context.Context) string {
	if e.config.Revisions == nil || e.config.Root == "" {
		return ""
	}

	root, err := utils.ResolvePath(e.config.Root)
	if err != nil {
		return ""
	}

	rev, ok := e.config.Revisions.CurrentRevision(ctx, root)
	if !ok {
		return ""
	}
	return rev
}
