package extract

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

// DefaultMaxFileBytes is the largest source file analyzed by default.
const DefaultMaxFileBytes = 16 * 1024 * 1024

// FileOutcome classifies what happened to one source file.
type FileOutcome int

const (
	FileAnalyzed FileOutcome = iota
	FileFailed
)

func (o FileOutcome) String() string {
	switch o {
	case FileAnalyzed:
		return "analyzed"
	case FileFailed:
		return "failed"
	default:
		return fmt.Sprintf("FileOutcome(%d)", int(o))
	}
}

// StatementOutcome classifies what happened to one literal call site.
// A statement whose owner could not be resolved is reported as
// StatementUnresolvedOwner and then, once stored, as StatementWritten.
type StatementOutcome int

const (
	StatementWritten StatementOutcome = iota
	StatementCompileFailed
	StatementUnresolvedOwner
)

func (o StatementOutcome) String() string {
	switch o {
	case StatementWritten:
		return "written"
	case StatementCompileFailed:
		return "compile_failed"
	case StatementUnresolvedOwner:
		return "unresolved_owner"
	default:
		return fmt.Sprintf("StatementOutcome(%d)", int(o))
	}
}

// Option configures an Analyzer.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	compiler     *logminer.Compiler
	format       pattern.Format
	include      []string
	exclude      []string
	extractors   map[string]Extractor
	maxFileBytes int64
	onFile       func(FileOutcome)
	onStatement  func(StatementOutcome)
}

func defaultConfig() *config {
	return &config{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		compiler:     &logminer.Compiler{},
		extractors:   map[string]Extractor{".java": JavaExtractor{}},
		maxFileBytes: DefaultMaxFileBytes,
	}
}

// defaultInclude matches every extension with a registered extractor.
func (c *config) defaultInclude() []string {
	exts := make([]string, 0, len(c.extractors))
	for ext := range c.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	include := make([]string, len(exts))
	for i, ext := range exts {
		include[i] = "**/*" + ext
	}
	return include
}

// WithLogger sets the logger for diagnostics.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCompiler sets the template compiler. Default: placeholders become ([\w]+).
func WithCompiler(comp *logminer.Compiler) Option {
	return func(c *config) {
		if comp != nil {
			c.compiler = comp
		}
	}
}

// WithFormat sets the output format. Default: chosen from the output file
// extension.
func WithFormat(format pattern.Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithInclude sets the source globs, relative to the root.
// Default: "**/*<ext>" for every extension with an extractor.
func WithInclude(patterns ...string) Option {
	return func(c *config) {
		c.include = patterns
	}
}

// WithExclude skips sources matching any of the given globs.
func WithExclude(patterns ...string) Option {
	return func(c *config) {
		c.exclude = patterns
	}
}

// WithExtractor registers e for files with extension ext (e.g. ".kt"),
// replacing any previous extractor for it. A nil e removes the extension.
func WithExtractor(ext string, e Extractor) Option {
	return func(c *config) {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if e == nil {
			delete(c.extractors, ext)
			return
		}
		c.extractors[ext] = e
	}
}

// WithMaxFileBytes sets the largest source file to analyze.
func WithMaxFileBytes(n int64) Option {
	return func(c *config) {
		c.maxFileBytes = n
	}
}

// WithFileObserver registers fn to be called with the outcome of every file.
func WithFileObserver(fn func(FileOutcome)) Option {
	return func(c *config) {
		c.onFile = fn
	}
}

// WithStatementObserver registers fn to be called for every literal call site.
func WithStatementObserver(fn func(StatementOutcome)) Option {
	return func(c *config) {
		c.onStatement = fn
	}
}
