package logminer

import (
	"strings"
	"testing"
)

// FuzzCompileTemplate checks that any valid template compiles, that its
// literal text matches itself, and that substituting word runs for the
// placeholders gives a full match with one capture per placeholder.
func FuzzCompileTemplate(f *testing.F) {
	f.Add("Application {} has been installed")
	f.Add("Cannot resolve logger statement {} in file {}")
	f.Add("{}{}")
	f.Add("a|b (c) [d] {e} ^$.*+?\\")
	f.Add("line\nbreak\r\t\x00")
	f.Add("")

	f.Fuzz(func(t *testing.T, template string) {
		re, err := CompileTemplate(template)
		if err != nil {
			if _, ok := err.(*TemplateError); !ok {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			return
		}

		k := strings.Count(template, PlaceholderMarker)
		if re.NumSubexp() != k {
			t.Fatalf("template %q: got %d groups, want %d", template, re.NumSubexp(), k)
		}
		if re.String() == "" || strings.Contains(re.String(), FieldDelimiter) || strings.ContainsAny(re.String(), "\r\n") {
			t.Fatalf("template %q: pattern %q is not a non-empty pipe-free line", template, re.String())
		}

		stmt, err := NewLogStatement(LevelInfo, "Fuzz", re)
		if err != nil {
			t.Fatalf("NewLogStatement: %v", err)
		}
		msg := strings.ReplaceAll(template, PlaceholderMarker, "w0_rd")
		groups, ok := stmt.matchFull(msg)
		if !ok {
			t.Fatalf("template %q: substituted message %q did not match %q", template, msg, re.String())
		}
		if len(groups) != k {
			t.Fatalf("template %q: got %d captures, want %d", template, len(groups), k)
		}
	})
}

// FuzzTokenizeLine checks that tokenizing never panics and only accepts
// lines with exactly six fields.
func FuzzTokenizeLine(f *testing.F) {
	f.Add("a|b|c|d|e|f")
	f.Add("a|b|c|d|e")
	f.Add("|||||")
	f.Add("a|b|c|d|e|f|")
	f.Add(string([]byte{0xff, '|', 0xfe}))

	f.Fuzz(func(t *testing.T, line string) {
		tokens, ok := TokenizeLine(line)
		if !ok {
			return
		}
		if n := len(splitFields(strings.TrimRight(line, "\r"))); n != lineFieldCount {
			t.Fatalf("accepted line with %d fields: %q", n, line)
		}
		if strings.Contains(tokens.Message, FieldDelimiter) {
			t.Fatalf("message contains delimiter: %q", tokens.Message)
		}
	})
}
