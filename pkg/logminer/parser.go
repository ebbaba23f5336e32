package logminer

import (
	"context"
	"errors"
)

// Parser turns one raw log line into a ParsedLog.
type Parser interface {
	// ParseLine parses a single log line.
	// It returns (nil, nil) for malformed lines and for lines whose class has
	// no candidate statements. Errors are reserved for unexpected failures.
	ParseLine(ctx context.Context, line string) (*ParsedLog, error)
}

// ParserFunc is an adapter to allow ordinary functions to be used as Parsers.
type ParserFunc func(ctx context.Context, line string) (*ParsedLog, error)

// ParseLine implements the Parser interface.
func (f ParserFunc) ParseLine(ctx context.Context, line string) (*ParsedLog, error) {
	return f(ctx, line)
}

// LineParser tokenizes raw lines and matches their message against a
// Repository.
type LineParser struct {
	repo *Repository
}

// NewLineParser returns a LineParser over repo.
func NewLineParser(repo *Repository) *LineParser {
	if repo == nil {
		repo = NewRepository()
	}
	return &LineParser{repo: repo}
}

// Repository returns the repository the parser matches against.
func (p *LineParser) Repository() *Repository { return p.repo }

// ParseLine implements the Parser interface.
func (p *LineParser) ParseLine(ctx context.Context, line string) (*ParsedLog, error) {
	tokens, ok := TokenizeLine(line)
	if !ok {
		return nil, nil
	}
	result, ok := p.repo.Match(tokens.Message, tokens.Class)
	if !ok {
		return nil, nil
	}
	result.Line = &tokens
	return &result, nil
}

// ParserChain tries several parsers in order. The first structural match
// wins; if none matches, the first degenerate record is returned.
type ParserChain struct {
	// ContinueOnError skips parsers that fail and joins their errors into
	// the returned error. Otherwise the first error aborts the chain.
	ContinueOnError bool
	Parsers         []Parser
}

// ParseLine implements the Parser interface.
//
// If the context is cancelled mid-chain, the best result so far is returned
// together with the context error.
func (c *ParserChain) ParseLine(ctx context.Context, line string) (*ParsedLog, error) {
	var fallback *ParsedLog
	var errs []error

	for _, p := range c.Parsers {
		if err := ctx.Err(); err != nil {
			return fallback, err
		}
		if p == nil {
			continue
		}

		result, err := p.ParseLine(ctx, line)
		if err != nil {
			if c.ContinueOnError {
				errs = append(errs, err)
				continue
			}
			return nil, err
		}
		if result == nil {
			continue
		}
		if result.Matched() {
			return result, errors.Join(errs...)
		}
		if fallback == nil {
			fallback = result
		}
	}

	return fallback, errors.Join(errs...)
}

var (
	_ Parser = (*LineParser)(nil)
	_ Parser = (*ParserChain)(nil)
)
