package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/openmined/fabsync/internal/utils"
)

const (
	metadataDir    = ".fabsync"
	lockFile       = "sync.lock"
	ignoreFile     = ".fabsyncignore"
	metadataIgnore = "*\n"
)

var (
	ErrWorkspaceLocked = errors.New("sync root locked by another process")
	ErrNotADirectory   = errors.New("sync root is not a directory")
)

// Workspace is the local, git tracked directory a sync run writes into
type Workspace struct {
	Root        string
	MetadataDir string
	IgnorePath  string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", rootDir, err)
	}

	return &Workspace{
		Root:        root,
		MetadataDir: filepath.Join(root, metadataDir),
		IgnorePath:  filepath.Join(root, ignoreFile),
		flock:       flock.New(filepath.Join(root, metadataDir, lockFile)),
	}, nil
}

// Setup creates the root and its metadata directory, then takes the run lock
func (w *Workspace) Setup() error {
	if utils.FileExists(w.Root) {
		return fmt.Errorf("%w: %s", ErrNotADirectory, w.Root)
	}

	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	// keep lock files out of the git tree the items are written to
	gitignore := filepath.Join(w.MetadataDir, ".gitignore")
	if !utils.FileExists(gitignore) {
		if err := os.WriteFile(gitignore, []byte(metadataIgnore), 0o644); err != nil {
			slog.Warn("failed to write metadata gitignore", "path", gitignore, "error", err)
		}
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Debug("workspace", "root", w.Root)
	return nil
}

func (w *Workspace) Lock() error {
	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock sync root: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// if this process hasn't locked the root, then don't delete the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock sync root: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// IsMetadataPath reports whether a root relative path belongs to fabsync itself
func IsMetadataPath(relPath string) bool {
	first, _, _ := strings.Cut(filepath.ToSlash(relPath), "/")
	return strings.EqualFold(first, metadataDir) || strings.EqualFold(first, ignoreFile)
}
