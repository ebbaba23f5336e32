// Package logfinder resolves log directories and lists the log files in them.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// EnvLogDir is the environment variable name for specifying log directory.
const EnvLogDir = "LOGMINER_LOGDIR"

// DefaultInclude matches every file directly inside the directory.
const DefaultInclude = "*"

// Sentinel errors.
var (
	ErrLogDirNotFound = errors.New("log directory not found")
	ErrNoLogFiles     = errors.New("no log files found")
)

// FindLogDir returns the log directory.
//
// Priority:
//  1. explicit (if non-empty)
//  2. LOGMINER_LOGDIR environment variable
//
// Returns ErrLogDirNotFound if neither names an existing directory.
// The returned path has symlinks resolved.
func FindLogDir(explicit string) (string, error) {
	if explicit != "" {
		if resolved := resolveDir(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: specified path is not a directory", ErrLogDirNotFound)
	}

	if envDir := os.Getenv(EnvLogDir); envDir != "" {
		if resolved := resolveDir(envDir); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to invalid directory", ErrLogDirNotFound, EnvLogDir)
	}

	return "", ErrLogDirNotFound
}

// FindLogFiles returns the regular files in dir matching any include
// pattern, sorted lexically. With no patterns, DefaultInclude is used.
// Patterns use doublestar syntax relative to dir, so "**/*.log" recurses.
func FindLogFiles(dir string, include ...string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if len(include) == 0 {
		include = []string{DefaultInclude}
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("globbing %q: %w", pattern, err)
		}
		for _, m := range matches {
			path := filepath.Join(dir, filepath.FromSlash(m))
			if seen[path] {
				continue
			}
			// Skip symlinks and special files
			linfo, err := os.Lstat(path)
			if err != nil || !linfo.Mode().IsRegular() {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// logCandidate holds a log file path and its cached modification time.
type logCandidate struct {
	path    string
	modTime int64
}

// FindLatestLogFile returns the most recently modified log file in dir.
// Returns ErrNoLogFiles if there is none.
func FindLatestLogFile(dir string, include ...string) (string, error) {
	files, err := FindLogFiles(dir, include...)
	if err != nil {
		return "", err
	}

	candidates := make([]logCandidate, 0, len(files))
	for _, f := range files {
		info, err := os.Lstat(f)
		if err != nil {
			// Deleted since listing
			continue
		}
		candidates = append(candidates, logCandidate{
			path:    f,
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return "", ErrNoLogFiles
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})
	return candidates[0].path, nil
}

// resolveDir resolves symlinks and returns the path if it is a directory,
// or the empty string otherwise.
func resolveDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	return resolved
}
