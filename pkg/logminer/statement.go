package logminer

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultClass is the sentinel class key used when a call site's owning type
// cannot be determined, and as the fallback bucket for lookups.
const DefaultClass = "Default-Class"

// FieldDelimiter separates the fields of pattern file records and raw log lines.
const FieldDelimiter = "|"

// Level is a lowercase severity token such as "info" or "warn".
type Level string

// Severity levels recognised by the extractor. They double as the logging
// method names that mark a call site.
const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists the known severity levels in ascending order.
var Levels = []Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError}

// ParseLevel normalises s to a Level. It reports false for unknown tokens,
// in which case the lowercased, trimmed input is still returned.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Levels {
		if l == known {
			return l, true
		}
	}
	return l, false
}

// LogStatement is a compiled message pattern together with the severity and
// class of the call site it was discovered at. It is immutable once built.
type LogStatement struct {
	level   Level
	class   string
	pattern *regexp.Regexp
	full    *regexp.Regexp // pattern anchored at both ends
}

// NewLogStatement builds a LogStatement. An empty class is stored as DefaultClass.
func NewLogStatement(level Level, class string, pattern *regexp.Regexp) (*LogStatement, error) {
	if pattern == nil {
		return nil, fmt.Errorf("log statement pattern is nil")
	}
	if class == "" {
		class = DefaultClass
	}
	full, err := regexp.Compile(`\A(?:` + pattern.String() + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("anchoring pattern %q: %w", pattern.String(), err)
	}
	return &LogStatement{level: level, class: class, pattern: pattern, full: full}, nil
}

// Level returns the statement severity.
func (s *LogStatement) Level() Level { return s.level }

// Class returns the owning class, or DefaultClass.
func (s *LogStatement) Class() string { return s.class }

// Pattern returns the compiled message pattern.
func (s *LogStatement) Pattern() *regexp.Regexp { return s.pattern }

// String renders the statement in the three-field pattern file form
// "level|class|regex".
func (s *LogStatement) String() string {
	return string(s.level) + FieldDelimiter + s.class + FieldDelimiter + s.pattern.String()
}

// matchFull reports whether the entire message matches and returns the
// capture groups 1..N. Groups that did not participate are empty strings.
func (s *LogStatement) matchFull(message string) ([]string, bool) {
	m := s.full.FindStringSubmatch(message)
	if m == nil {
		return nil, false
	}
	if len(m) == 1 {
		return nil, true
	}
	return m[1:], true
}
