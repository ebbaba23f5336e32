package logminer

// ParsedLog is the result of matching one log message.
//
// A record whose Class is empty had candidate statements but none of them
// matched; use Matched to tell the two apart.
type ParsedLog struct {
	// Message is the raw message text.
	Message string `json:"message"`

	// Class is the class of the matching statement. A statement's class is
	// never empty, so this is set exactly when a statement matched.
	Class string `json:"class,omitempty"`

	// Pattern is the source of the matching regular expression.
	Pattern string `json:"pattern,omitempty"`

	// Captures holds capture groups 1..N of the match, in order.
	// It is nil when the pattern has no groups.
	Captures []string `json:"captures,omitempty"`

	// Level is the severity of the matching statement.
	Level Level `json:"level,omitempty"`

	// Source is the file or stream the line came from, when known.
	Source string `json:"source,omitempty"`

	// LineNum is the 1-based line number within Source. It is zero when
	// unknown, as for lines followed from the end of a file.
	LineNum int `json:"line,omitempty"`

	// Line is the tokenized log line, when the record came from a raw line.
	Line *LogLine `json:"-"`
}

// Matched reports whether a statement structurally matched the message.
func (p ParsedLog) Matched() bool {
	return p.Class != ""
}

// Match finds the first statement for class (falling back to DefaultClass)
// whose pattern matches the whole message.
//
// The boolean is false when no candidate statements exist at all. When
// candidates exist but none matches, the returned record carries only the
// message.
func (r *Repository) Match(message, class string) (ParsedLog, bool) {
	candidates, ok := r.Lookup(class)
	if !ok {
		return ParsedLog{}, false
	}
	result := ParsedLog{Message: message}
	for _, stmt := range candidates {
		groups, matched := stmt.matchFull(message)
		if !matched {
			continue
		}
		result.Class = stmt.class
		result.Pattern = stmt.pattern.String()
		result.Captures = groups
		result.Level = stmt.level
		break
	}
	return result, true
}
