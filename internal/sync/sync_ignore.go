package sync

import (
	"bufio"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/fabsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// SyncIgnoreList excludes items by their root relative directory, e.g. "Reports/Sales.Report".
// Rules come from the .fabsyncignore file at the sync root, in gitignore syntax.
type SyncIgnoreList struct {
	path   string
	rules  int
	ignore *gitignore.GitIgnore
}

func NewSyncIgnoreList(ignorePath string) *SyncIgnoreList {
	return &SyncIgnoreList{path: ignorePath}
}

func (s *SyncIgnoreList) Load() {
	var lines []string

	if s.path != "" && utils.FileExists(s.path) {
		file, err := os.Open(s.path)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", s.path, "error", err)
		} else {
			defer file.Close()

			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				lines = append(lines, line)
			}

			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", s.path, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", s.path, "rules", len(lines))
			}
		}
	}

	s.rules = len(lines)
	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether an item directory matches an ignore rule
func (s *SyncIgnoreList) ShouldIgnore(itemPath string) bool {
	if s.ignore == nil || s.rules == 0 {
		return false
	}
	// item directories are matched as directories so "dir/" style rules apply
	return s.ignore.MatchesPath(itemPath) || s.ignore.MatchesPath(itemPath+"/")
}

// IncludeFilter keeps only items whose directory matches one of its glob patterns.
// An empty filter keeps everything.
type IncludeFilter struct {
	patterns []string
}

func NewIncludeFilter(patterns []string) (*IncludeFilter, error) {
	f := &IncludeFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &InvalidPatternError{Pattern: p}
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

func (f *IncludeFilter) Matches(itemPath string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, itemPath); ok {
			return true
		}
	}
	return false
}

type InvalidPatternError struct {
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return "invalid include pattern: " + e.Pattern
}
