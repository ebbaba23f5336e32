package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/logminer/logminer-go/pkg/logminer"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
	"text":   true,
}

var (
	styleTrace   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleDebug   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleClass   = lipgloss.NewStyle().Bold(true)
	styleCapture = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	styleSource  = lipgloss.NewStyle().Faint(true)
)

// OutputRecord writes a record in the specified format to the writer.
func OutputRecord(format string, rec logminer.ParsedLog, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(rec, out)
	case "pretty":
		return OutputPretty(rec, out)
	case "text":
		return OutputText(rec, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes a record as JSON Lines format.
func OutputJSON(rec logminer.ParsedLog, out io.Writer) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes a record in human-readable, colored format.
func OutputPretty(rec logminer.ParsedLog, out io.Writer) error {
	var b strings.Builder
	b.WriteString(levelTag(rec.Level))
	b.WriteByte(' ')
	if rec.Matched() {
		b.WriteString(styleClass.Render(rec.Class))
	} else {
		b.WriteString(styleSource.Render("(unmatched)"))
	}
	b.WriteByte(' ')
	b.WriteString(rec.Message)

	if len(rec.Captures) > 0 {
		parts := make([]string, len(rec.Captures))
		for i, c := range rec.Captures {
			parts[i] = styleCapture.Render(quoteIfNeeded(c))
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, " "))
		b.WriteByte(']')
	}
	if rec.Source != "" {
		loc := rec.Source
		if rec.LineNum > 0 {
			loc = fmt.Sprintf("%s:%d", rec.Source, rec.LineNum)
		}
		fmt.Fprintf(&b, " %s", styleSource.Render(loc))
	}

	_, err := fmt.Fprintln(out, b.String())
	return err
}

func levelTag(level logminer.Level) string {
	padded := fmt.Sprintf("%-5s", strings.ToUpper(string(level)))
	switch level {
	case logminer.LevelTrace:
		return styleTrace.Render(padded)
	case logminer.LevelDebug:
		return styleDebug.Render(padded)
	case logminer.LevelWarn:
		return styleWarn.Render(padded)
	case logminer.LevelError:
		return styleError.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// OutputText writes a record as
// ParsedLog{log='...', clazz='...', regEx='...', matches=[a, b]}.
// A record without capture groups prints matches=null.
func OutputText(rec logminer.ParsedLog, out io.Writer) error {
	matches := "null"
	if rec.Captures != nil {
		matches = "[" + strings.Join(rec.Captures, ", ") + "]"
	}
	_, err := fmt.Fprintf(out, "ParsedLog{log='%s', clazz='%s', regEx='%s', matches=%s}\n",
		rec.Message, rec.Class, rec.Pattern, matches)
	return err
}

// quoteIfNeeded quotes a value if it contains special characters or control characters.
// Returns the value unchanged if no quoting is needed.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := false
	for _, c := range v {
		if c == ' ' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
