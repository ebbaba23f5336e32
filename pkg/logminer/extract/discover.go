package extract

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/logminer/logminer-go/internal/logfinder"
)

// FindSources lists the regular files under root matching any include
// pattern and no exclude pattern, in lexical order. Patterns use doublestar
// syntax relative to root, e.g. "**/*.java" or "**/test/**".
func FindSources(root string, include, exclude []string) ([]string, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	files, err := logfinder.FindLogFiles(root, include...)
	if err != nil {
		return nil, err
	}
	if len(exclude) == 0 {
		return files, nil
	}

	kept := files[:0]
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		if !excluded(filepath.ToSlash(rel), exclude) {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

func excluded(rel string, exclude []string) bool {
	for _, p := range exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
