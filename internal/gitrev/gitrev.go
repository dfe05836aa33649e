// Package gitrev reports the revision checked out in a local git tree.
// It only ever reads: nothing here mutates the repository.
package gitrev

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

var shaRE = regexp.MustCompile(`^[0-9a-f]{40}([0-9a-f]{24})?$`)

// Inspector returns the current revision of the repository containing root.
// ok is false when root is not a repository or the revision cannot be read.
type Inspector interface {
	CurrentRevision(ctx context.Context, root string) (sha string, ok bool)
}

// GitInspector asks the git binary first and falls back to reading the
// repository with go-git when git is not installed.
type GitInspector struct {
	// Command defaults to "git"
	Command string
}

func New() *GitInspector {
	return &GitInspector{}
}

func (g *GitInspector) CurrentRevision(ctx context.Context, root string) (string, bool) {
	if sha, ok := g.fromCLI(ctx, root); ok {
		return sha, true
	}
	return fromRepository(root)
}

func (g *GitInspector) command() string {
	if g.Command == "" {
		return "git"
	}
	return g.Command
}

func (g *GitInspector) fromCLI(ctx context.Context, root string) (string, bool) {
	if !systemGitAvailable(g.command()) {
		return "", false
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.command(), "-C", root, "rev-parse", "--verify", "HEAD")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Debug("git rev-parse failed", "root", root, "stderr", strings.TrimSpace(stderr.String()), "error", err)
		return "", false
	}

	sha := strings.TrimSpace(stdout.String())
	if !shaRE.MatchString(sha) {
		return "", false
	}
	return sha, true
}

func fromRepository(root string) (string, bool) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", false
	}

	head, err := repo.Head()
	if err != nil {
		// unborn branch: a fresh repository without commits
		return "", false
	}

	return head.Hash().String(), true
}

// systemGitAvailable checks if the git executable can be found in the system's PATH.
func systemGitAvailable(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}
