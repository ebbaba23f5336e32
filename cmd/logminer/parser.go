package main

import (
	"fmt"

	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

// buildParser loads every pattern file into its own LineParser. A single
// file gives a LineParser; several give a chain tried in order.
func buildParser(patternFiles []string) (logminer.Parser, error) {
	if len(patternFiles) == 0 {
		return nil, fmt.Errorf("no pattern files specified")
	}

	parsers := make([]logminer.Parser, 0, len(patternFiles))
	for i, path := range patternFiles {
		f, err := pattern.Load(path)
		if err != nil {
			// Error from pattern package is already sanitized (no path)
			return nil, fmt.Errorf("pattern file %d: %w", i+1, err)
		}
		if f.Skipped > 0 {
			logger.Warn("skipped malformed pattern records", "file", path, "count", f.Skipped)
		}
		repo, err := pattern.NewRepository(f)
		if err != nil {
			return nil, fmt.Errorf("pattern file %d: %w", i+1, err)
		}
		logger.Debug("loaded pattern file", "file", path, "statements", repo.Len(), "classes", len(repo.Classes()))
		parsers = append(parsers, logminer.NewLineParser(repo))
	}

	if len(parsers) == 1 {
		return parsers[0], nil
	}
	return &logminer.ParserChain{Parsers: parsers}, nil
}
