package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/pkg/shared/files"
)

// Finder enumerates the files of one or more workspace roots that match the
// include patterns and none of the exclude patterns. Patterns are doublestar globs
// relative to a root, e.g. "**/*.metta".
type Finder struct {
	roots   []string
	include []string
	exclude []string
	logger  hclog.Logger
}

// NewFinder creates a Finder. Roots may be directories or single files; a file
// root is returned as is without pattern checks.
func NewFinder(roots, include, exclude []string, logger hclog.Logger) (*Finder, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}

	f := &Finder{include: include, exclude: exclude, logger: logger}
	for _, root := range roots {
		abs, err := files.AbsPath(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root %q: %w", root, err)
		}
		f.roots = append(f.roots, abs)
	}
	return f, nil
}

// NewFinderFromConfig creates a Finder using the workspace section of cfg.
func NewFinderFromConfig(cfg *config.Config, roots []string, logger hclog.Logger) (*Finder, error) {
	return NewFinder(roots, cfg.Workspace.Include, cfg.Workspace.Exclude, logger)
}

// Roots returns the absolute workspace roots.
func (f *Finder) Roots() []string {
	return append([]string(nil), f.roots...)
}

// Find returns the sorted, de-duplicated absolute paths of all matching files.
func (f *Finder) Find(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range f.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to access workspace root %q: %w", root, err)
		}
		if !info.IsDir() {
			seen[root] = struct{}{}
			continue
		}

		fsys := os.DirFS(root)
		for _, pattern := range f.include {
			matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("failed to glob %q in %q: %w", pattern, root, err)
			}
			for _, match := range matches {
				if f.excluded(match) {
					continue
				}
				seen[filepath.Join(root, filepath.FromSlash(match))] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	f.logger.Debug("workspace files found", "roots", len(f.roots), "files", len(paths))
	return paths, nil
}

// Matches reports whether path lies under one of the roots and satisfies the patterns.
func (f *Finder) Matches(path string) bool {
	abs, err := files.AbsPath(path)
	if err != nil {
		return false
	}
	for _, root := range f.roots {
		if abs == root {
			return true
		}
		rel := files.RelativeTo(root, abs)
		if rel == abs {
			continue
		}
		rel = filepath.ToSlash(rel)
		if f.excluded(rel) {
			return false
		}
		for _, pattern := range f.include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
		}
	}
	return false
}

// excluded reports whether a root-relative, slash separated path matches an exclude pattern.
func (f *Finder) excluded(rel string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory is excluded from the workspace.
func (f *Finder) SkipDir(path string) bool {
	abs, err := files.AbsPath(path)
	if err != nil {
		return true
	}
	for _, root := range f.roots {
		if abs == root {
			return false
		}
		rel := files.RelativeTo(root, abs)
		if rel == abs {
			continue
		}
		return f.excluded(filepath.ToSlash(rel))
	}
	return true
}
