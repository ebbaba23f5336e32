package logminer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/logminer/logminer-go/internal/logfinder"
	"github.com/logminer/logminer-go/internal/safefile"
)

// ParseReader parses every line of r. source labels the yielded records.
//
// Malformed lines and lines without candidates are skipped silently, as are
// unmatched lines unless WithIncludeUnmatched is set. Errors from the
// parser are yielded and parsing continues, unless WithStopOnError is set.
// Configuration and read errors end the sequence.
func ParseReader(ctx context.Context, r io.Reader, source string, opts ...ParseOption) iter.Seq2[ParsedLog, error] {
	return func(yield func(ParsedLog, error) bool) {
		cfg, err := applyParseOptions(opts)
		if err != nil {
			yield(ParsedLog{}, err)
			return
		}
		parseStream(ctx, r, source, cfg, yield)
	}
}

// ParseLines parses lines from any source, such as a remote log service.
// An error from lines ends the sequence.
func ParseLines(ctx context.Context, lines iter.Seq2[string, error], source string, opts ...ParseOption) iter.Seq2[ParsedLog, error] {
	return func(yield func(ParsedLog, error) bool) {
		cfg, err := applyParseOptions(opts)
		if err != nil {
			yield(ParsedLog{}, err)
			return
		}
		parseLines(ctx, lines, source, cfg, yield)
	}
}

// ParseFile parses a single log file.
//
// Example:
//
//	for rec, err := range logminer.ParseFile(ctx, "app.log", logminer.WithRepository(repo)) {
//	    if err != nil {
//	        log.Printf("error: %v", err)
//	        break
//	    }
//	    fmt.Println(rec.Class, rec.Captures)
//	}
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[ParsedLog, error] {
	return func(yield func(ParsedLog, error) bool) {
		cfg, err := applyParseOptions(opts)
		if err != nil {
			yield(ParsedLog{}, err)
			return
		}
		parseFile(ctx, path, cfg, yield)
	}
}

// ParseDir parses every log file directly inside dir, in lexical order.
// A directory that cannot be read ends the sequence with an error.
func ParseDir(ctx context.Context, dir string, opts ...ParseOption) iter.Seq2[ParsedLog, error] {
	return func(yield func(ParsedLog, error) bool) {
		cfg, err := applyParseOptions(opts)
		if err != nil {
			yield(ParsedLog{}, err)
			return
		}
		files, err := logfinder.FindLogFiles(dir, cfg.include...)
		if err != nil {
			yield(ParsedLog{}, fmt.Errorf("listing %s: %w", dir, err))
			return
		}
		cfg.logger.Debug("parsing log directory", "dir", dir, "files", len(files))
		for _, path := range files {
			if !parseFile(ctx, path, cfg, yield) {
				return
			}
		}
	}
}

// ParseFileAll collects the records of ParseFile. It stops at the first error.
func ParseFileAll(ctx context.Context, path string, opts ...ParseOption) ([]ParsedLog, error) {
	var out []ParsedLog
	for rec, err := range ParseFile(ctx, path, opts...) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseFile reports false when the consumer stopped or a fatal error was yielded.
func parseFile(ctx context.Context, path string, cfg *parseConfig, yield func(ParsedLog, error) bool) bool {
	f, _, err := safefile.OpenRegular(path)
	if err != nil {
		yield(ParsedLog{}, fmt.Errorf("opening log file: %w", err))
		return false
	}
	defer f.Close()

	cfg.logger.Debug("parsing log file", "path", path)
	return parseStream(ctx, f, path, cfg, yield)
}

const initialLineBuffer = 64 * 1024

func parseStream(ctx context.Context, r io.Reader, source string, cfg *parseConfig, yield func(ParsedLog, error) bool) bool {
	// Scanner enforces the larger of the initial capacity and the max.
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, cfg.maxLineBytes)), cfg.maxLineBytes)

	lines := func(yieldLine func(string, error) bool) {
		for scanner.Scan() {
			if !yieldLine(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yieldLine("", fmt.Errorf("reading %s: %w", source, err))
		}
	}
	return parseLines(ctx, lines, source, cfg, yield)
}

// parseLines reports false when the consumer stopped or a fatal error was yielded.
func parseLines(ctx context.Context, lines iter.Seq2[string, error], source string, cfg *parseConfig, yield func(ParsedLog, error) bool) bool {
	lineNum := 0
	for line, err := range lines {
		if err != nil {
			yield(ParsedLog{}, err)
			return false
		}
		if err := ctx.Err(); err != nil {
			yield(ParsedLog{}, err)
			return false
		}
		lineNum++

		result, err := cfg.parser.ParseLine(ctx, line)
		if err != nil {
			perr := &LineError{Source: source, LineNum: lineNum, Err: err}
			if !yield(ParsedLog{}, perr) || cfg.stopOnError {
				return false
			}
			continue
		}

		outcome := classify(line, result)
		if cfg.onLine != nil {
			cfg.onLine(outcome)
		}
		if outcome == OutcomeMalformed || outcome == OutcomeNoCandidates {
			continue
		}
		if outcome == OutcomeUnmatched && !cfg.includeUnmatched {
			continue
		}

		rec := *result
		rec.Source = source
		rec.LineNum = lineNum
		if !yield(rec, nil) {
			return false
		}
	}
	return true
}

func classify(line string, result *ParsedLog) LineOutcome {
	switch {
	case result == nil:
		if _, ok := TokenizeLine(line); !ok {
			return OutcomeMalformed
		}
		return OutcomeNoCandidates
	case result.Matched():
		return OutcomeMatched
	default:
		return OutcomeUnmatched
	}
}
