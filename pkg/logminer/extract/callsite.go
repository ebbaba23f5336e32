// Package extract discovers logging call sites in source trees and turns
// their message templates into a pattern file.
package extract

import (
	"context"
	"strings"

	"github.com/logminer/logminer-go/pkg/logminer"
)

// CallSite is one call of a logging method found in a source file.
type CallSite struct {
	// File is the path of the source file.
	File string `json:"file"`

	// Line is the 1-based line of the method name.
	Line int `json:"line"`

	// Method is the called method, which doubles as the level name.
	Method string `json:"method"`

	// Template is the decoded first argument when Literal is true.
	Template string `json:"template,omitempty"`

	// Receiver is the expression the method is called on, as written.
	// It is empty for unqualified calls.
	Receiver string `json:"receiver,omitempty"`

	// Scopes lists the enclosing type declarations, innermost first.
	Scopes []Scope `json:"scopes,omitempty"`

	// HasArgs reports whether the call has at least one argument.
	HasArgs bool `json:"has_args"`

	// Literal reports whether the first argument is a plain string literal.
	Literal bool `json:"literal"`
}

// Scope is a type declaration enclosing a call site.
type Scope struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields,omitempty"`
}

// HasField reports whether the scope declares a field called name.
func (s Scope) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Level returns the severity implied by the method name.
func (c CallSite) Level() logminer.Level {
	l, _ := logminer.ParseLevel(c.Method)
	return l
}

// SimpleReceiver reports whether the receiver is a plain identifier,
// such as "log" in log.info(...).
func (c CallSite) SimpleReceiver() bool {
	if c.Receiver == "" || c.Receiver == "this" || c.Receiver == "super" {
		return false
	}
	for i, r := range c.Receiver {
		if !isIdentRune(r, i == 0) {
			return false
		}
	}
	return true
}

// String renders the call roughly as written, for diagnostics.
func (c CallSite) String() string {
	var sb strings.Builder
	if c.Receiver != "" {
		sb.WriteString(c.Receiver)
		sb.WriteByte('.')
	}
	sb.WriteString(c.Method)
	sb.WriteByte('(')
	switch {
	case c.Literal:
		sb.WriteByte('"')
		sb.WriteString(c.Template)
		sb.WriteByte('"')
		sb.WriteString(", ...")
	case c.HasArgs:
		sb.WriteString("...")
	}
	sb.WriteByte(')')
	return sb.String()
}

// Extractor finds logging call sites in one source file.
type Extractor interface {
	// Extract returns the call sites of src in source order. path is used
	// for diagnostics only.
	Extract(ctx context.Context, path string, src []byte) ([]CallSite, error)
}

// ExtractorFunc is an adapter to allow ordinary functions to be used as Extractors.
type ExtractorFunc func(ctx context.Context, path string, src []byte) ([]CallSite, error)

// Extract implements the Extractor interface.
func (f ExtractorFunc) Extract(ctx context.Context, path string, src []byte) ([]CallSite, error) {
	return f(ctx, path, src)
}
