package sync

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/openmined/fabsync/internal/fabricsdk"
)

const tempPrefix = ".fabsync-"

var (
	ErrPathEscape         = errors.New("part path escapes the item directory")
	ErrUnsupportedPayload = errors.New("unsupported payload type")
)

// MaterializerOpts configures how definitions are written
type MaterializerOpts struct {
	// Prune removes files from the item directory that are not part of the definition
	Prune bool
	// DryRun computes the outcome without touching the filesystem
	DryRun bool
}

// Materialization is the per item outcome of Materialize. Paths are relative to the item directory.
type Materialization struct {
	Dir       string   `json:"dir"`
	Written   []string `json:"written,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Pruned    []string `json:"pruned,omitempty"`
	Bytes     int64    `json:"bytes"`
}

// Materializer writes definition parts below a root filesystem.
// Writing the same definition twice leaves the tree untouched.
type Materializer struct {
	fs   billy.Filesystem
	opts MaterializerOpts
}

func NewMaterializer(filesystem billy.Filesystem, opts *MaterializerOpts) *Materializer {
	m := &Materializer{fs: filesystem}
	if opts != nil {
		m.opts = *opts
	}
	return m
}

type decodedPart struct {
	rel  string
	data []byte
}

// Materialize writes parts into itemDir. It is not transactional: parts written
// before a failure stay on disk and are reported in the returned Materialization.
func (m *Materializer) Materialize(itemDir string, parts []fabricsdk.DefinitionPart) (*Materialization, error) {
	res := &Materialization{Dir: itemDir}

	decoded := make([]decodedPart, 0, len(parts))
	keep := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		rel, err := cleanPartPath(part.Path)
		if err != nil {
			return res, &FilesystemError{Op: "validate", Path: path.Join(itemDir, part.Path), Err: err}
		}
		keep[rel] = struct{}{}

		if part.Payload == "" {
			res.Skipped = append(res.Skipped, rel)
			continue
		}

		if part.PayloadType != "" && part.PayloadType != fabricsdk.PayloadInlineBase64 {
			return res, &FilesystemError{Op: "decode", Path: path.Join(itemDir, rel), Err: fmt.Errorf("%w: %s", ErrUnsupportedPayload, part.PayloadType)}
		}

		data, err := base64.StdEncoding.DecodeString(part.Payload)
		if err != nil {
			return res, &FilesystemError{Op: "decode", Path: path.Join(itemDir, rel), Err: err}
		}

		decoded = append(decoded, decodedPart{rel: rel, data: data})
	}

	for _, part := range decoded {
		target := m.fs.Join(itemDir, part.rel)

		changed, err := m.differs(target, part.data)
		if err != nil {
			return res, &FilesystemError{Op: "read", Path: target, Err: err}
		}
		if !changed {
			res.Unchanged = append(res.Unchanged, part.rel)
			continue
		}

		if !m.opts.DryRun {
			if err := m.writeAtomic(target, part.data); err != nil {
				return res, &FilesystemError{Op: "write", Path: target, Err: err}
			}
		}

		res.Written = append(res.Written, part.rel)
		res.Bytes += int64(len(part.data))
	}

	if m.opts.Prune {
		pruned, err := m.prune(itemDir, keep)
		res.Pruned = pruned
		if err != nil {
			return res, &FilesystemError{Op: "prune", Path: itemDir, Err: err}
		}
	}

	return res, nil
}

func (m *Materializer) differs(target string, data []byte) (bool, error) {
	existing, err := util.ReadFile(m.fs, target)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !bytes.Equal(existing, data), nil
}

// writeAtomic writes to a temp file next to the target and renames it into place
func (m *Materializer) writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := util.TempFile(m.fs, dir, tempPrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = m.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return err
	}

	// temp files are created 0600
	if ch, ok := m.fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, 0o644)
	}

	if err := m.fs.Rename(tmpName, target); err != nil {
		_ = m.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (m *Materializer) prune(itemDir string, keep map[string]struct{}) ([]string, error) {
	if _, err := m.fs.Stat(itemDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var stale []string
	err := util.Walk(m.fs, itemDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(itemDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := keep[rel]; !ok {
			stale = append(stale, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.opts.DryRun {
		return stale, nil
	}

	pruned := make([]string, 0, len(stale))
	for _, rel := range stale {
		if err := m.fs.Remove(m.fs.Join(itemDir, rel)); err != nil {
			return pruned, err
		}
		pruned = append(pruned, rel)
	}
	return pruned, nil
}

// cleanPartPath normalizes a part path and rejects anything that leaves the item directory
func cleanPartPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || path.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, p)
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, p)
	}
	return clean, nil
}
