package logminer

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultMaxLineBytes is the longest line ParseFile accepts by default.
const DefaultMaxLineBytes = 1024 * 1024

// discardLogger is used when no logger is configured.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// ParseOption configures ParseFile, ParseDir and ParseReader.
type ParseOption func(*parseConfig)

// parseConfig holds internal configuration for parsing.
type parseConfig struct {
	parser           Parser
	includeUnmatched bool
	maxLineBytes     int
	include          []string
	stopOnError      bool
	logger           *slog.Logger
	onLine           func(LineOutcome)
}

// LineOutcome classifies what happened to one input line.
type LineOutcome int

const (
	// OutcomeMatched means a statement matched the message.
	OutcomeMatched LineOutcome = iota
	// OutcomeUnmatched means candidates existed but none matched.
	OutcomeUnmatched
	// OutcomeNoCandidates means the line's class had no statements and no
	// default bucket exists.
	OutcomeNoCandidates
	// OutcomeMalformed means the line did not have six fields.
	OutcomeMalformed
)

func (o LineOutcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeNoCandidates:
		return "no_candidates"
	case OutcomeMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("LineOutcome(%d)", int(o))
	}
}

func defaultParseConfig() *parseConfig {
	return &parseConfig{
		maxLineBytes: DefaultMaxLineBytes,
		logger:       discardLogger,
	}
}

func applyParseOptions(opts []ParseOption) (*parseConfig, error) {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.parser == nil {
		return nil, fmt.Errorf("no parser configured (use WithParser or WithRepository)")
	}
	if cfg.maxLineBytes <= 0 {
		return nil, fmt.Errorf("max line bytes must be positive, got %d", cfg.maxLineBytes)
	}
	return cfg, nil
}

// WithParser sets the parser used for each line.
// If p is nil, this option has no effect.
func WithParser(p Parser) ParseOption {
	return func(c *parseConfig) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithRepository parses lines with a LineParser over repo.
func WithRepository(repo *Repository) ParseOption {
	return func(c *parseConfig) {
		if repo != nil {
			c.parser = NewLineParser(repo)
		}
	}
}

// WithIncludeUnmatched also yields records for lines whose candidates all
// failed to match. Default: false (only structural matches are yielded).
func WithIncludeUnmatched(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeUnmatched = include
	}
}

// WithMaxLineBytes sets the longest accepted line. Default: 1MB.
func WithMaxLineBytes(n int) ParseOption {
	return func(c *parseConfig) {
		c.maxLineBytes = n
	}
}

// WithInclude restricts ParseDir to file names matching any of the given
// glob patterns (doublestar syntax, relative to the directory).
// Default: every regular file directly inside the directory.
func WithInclude(patterns ...string) ParseOption {
	return func(c *parseConfig) {
		c.include = patterns
	}
}

// WithStopOnError stops at the first parser error instead of skipping the line.
func WithStopOnError(stop bool) ParseOption {
	return func(c *parseConfig) {
		c.stopOnError = stop
	}
}

// WithParseLogger sets a logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithParseLogger(logger *slog.Logger) ParseOption {
	return func(c *parseConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLineObserver registers fn to be called with the outcome of every line.
func WithLineObserver(fn func(LineOutcome)) ParseOption {
	return func(c *parseConfig) {
		c.onLine = fn
	}
}

// FollowOption configures a Follower using the functional options pattern.
type FollowOption func(*followConfig)

// followConfig holds internal configuration for the follower.
type followConfig struct {
	logDir           string
	pollInterval     time.Duration
	fromStart        bool
	poll             bool
	includeUnmatched bool
	include          []string
	logger           *slog.Logger
	parser           Parser
}

func defaultFollowConfig() *followConfig {
	return &followConfig{
		pollInterval: 2 * time.Second,
		logger:       discardLogger,
	}
}

func applyFollowOptions(opts []FollowOption) *followConfig {
	cfg := defaultFollowConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

func (c *followConfig) validate() error {
	if c.parser == nil {
		return fmt.Errorf("no parser configured (use WithFollowParser)")
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	}
	return nil
}

// WithLogDir sets the directory whose newest log file is followed.
func WithLogDir(dir string) FollowOption {
	return func(c *followConfig) {
		c.logDir = dir
	}
}

// WithPollInterval sets how often to check for a newer log file.
// Default: 2 seconds.
func WithPollInterval(interval time.Duration) FollowOption {
	return func(c *followConfig) {
		c.pollInterval = interval
	}
}

// WithFromStart reads the followed file from its beginning instead of its end.
func WithFromStart(fromStart bool) FollowOption {
	return func(c *followConfig) {
		c.fromStart = fromStart
	}
}

// WithPolling makes the tailer poll for changes instead of using inotify.
func WithPolling(poll bool) FollowOption {
	return func(c *followConfig) {
		c.poll = poll
	}
}

// WithFollowInclude restricts which files in the directory are candidates.
func WithFollowInclude(patterns ...string) FollowOption {
	return func(c *followConfig) {
		c.include = patterns
	}
}

// WithFollowIncludeUnmatched also emits degenerate records.
func WithFollowIncludeUnmatched(include bool) FollowOption {
	return func(c *followConfig) {
		c.includeUnmatched = include
	}
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) FollowOption {
	return func(c *followConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFollowParser sets the parser for followed lines.
// If p is nil, this option has no effect.
func WithFollowParser(p Parser) FollowOption {
	return func(c *followConfig) {
		if p != nil {
			c.parser = p
		}
	}
}
