package logminer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PlaceholderMarker is the positional placeholder in a message template.
const PlaceholderMarker = "{}"

// DefaultPlaceholderGroup is the capture group substituted for each
// placeholder: one or more word characters.
const DefaultPlaceholderGroup = `([\w]+)`

// EmptyPattern is the source compiled from an empty template. It matches only
// the empty message.
const EmptyPattern = `(?:)`

// regexMeta lists the characters with special meaning in RE2 syntax.
const regexMeta = `\.+*?()[]{}^$`

// TemplateError reports a template that did not produce a valid pattern.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

// Unwrap returns the underlying regexp error.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Compiler turns message templates into regular expressions.
// The zero value uses DefaultPlaceholderGroup.
type Compiler struct {
	// Group replaces each placeholder. It must contain exactly one
	// capturing group.
	Group string
}

// NewCompiler returns a Compiler using group for placeholders, after checking
// that group is a valid expression with exactly one capturing group.
func NewCompiler(group string) (*Compiler, error) {
	if group == "" {
		return &Compiler{}, nil
	}
	re, err := regexp.Compile(group)
	if err != nil {
		return nil, fmt.Errorf("invalid placeholder group: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("placeholder group %q must contain exactly one capturing group, has %d", group, re.NumSubexp())
	}
	return &Compiler{Group: group}, nil
}

func (c *Compiler) group() string {
	if c == nil || c.Group == "" {
		return DefaultPlaceholderGroup
	}
	return c.Group
}

// Source returns the regular expression source for template without
// compiling it. Literal text is escaped first; every placeholder then
// becomes the capture group. The result is never anchored.
//
// An empty template yields EmptyPattern, so the source is never an empty
// pattern file field.
func (c *Compiler) Source(template string) string {
	if template == "" {
		return EmptyPattern
	}
	parts := strings.Split(template, PlaceholderMarker)
	for i, p := range parts {
		parts[i] = EscapeLiteral(p)
	}
	return strings.Join(parts, c.group())
}

// Compile converts template into a regular expression with one capture group
// per placeholder.
func (c *Compiler) Compile(template string) (*regexp.Regexp, error) {
	if !utf8.ValidString(template) {
		return nil, &TemplateError{Template: template, Err: fmt.Errorf("invalid UTF-8")}
	}
	re, err := regexp.Compile(c.Source(template))
	if err != nil {
		return nil, &TemplateError{Template: template, Err: err}
	}
	return re, nil
}

// CompileTemplate compiles template with the default placeholder group.
func CompileTemplate(template string) (*regexp.Regexp, error) {
	return (*Compiler)(nil).Compile(template)
}

// EscapeLiteral escapes s so that it matches itself literally.
//
// Unlike regexp.QuoteMeta, the field delimiter is written as \x7C and control
// characters as escapes, so the result is a single line that can be stored in
// a pattern file record.
func EscapeLiteral(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r == '|':
			sb.WriteString(`\x7C`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7F:
			fmt.Fprintf(&sb, `\x%02X`, r)
		case r < utf8.RuneSelf && strings.ContainsRune(regexMeta, r):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
