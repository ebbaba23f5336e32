// Package pattern reads and writes pattern files, the persisted form of a
// logminer.Repository.
//
// Two formats exist. The pipe format has one "level|class|regex" record per
// line:
//
//	info|ApplicationManager|Application ([\w]+) has been installed
//	warn|Default-Class|Cannot resolve logger statement ([\w]+) in file ([\w]+)
//
// The YAML format carries a version and a list of the same three fields:
//
//	version: 1
//	patterns:
//	  - level: info
//	    class: ApplicationManager
//	    regex: 'Application ([\w]+) has been installed'
package pattern

import (
	"path/filepath"
	"strings"
)

// Format identifies a pattern file encoding.
type Format string

const (
	// FormatPipe is the line-oriented "level|class|regex" format.
	FormatPipe Format = "pipe"
	// FormatYAML is the versioned YAML format.
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format named by s. The empty string selects FormatPipe.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPipe:
		return FormatPipe, true
	case FormatYAML, "yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// DetectFormat picks a format from the file extension: .yaml and .yml are
// YAML, everything else is the pipe format.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatPipe
	}
}

// File is a decoded pattern file.
type File struct {
	// Version is the YAML format version. Pipe files report SupportedVersion.
	Version int `yaml:"version"`

	// Patterns lists the records in file order.
	Patterns []Record `yaml:"patterns"`

	// Format is the encoding the file was read from.
	Format Format `yaml:"-"`

	// Skipped counts pipe records dropped for having the wrong field count.
	Skipped int `yaml:"-"`
}

// Record is one stored statement.
type Record struct {
	// Level is the severity name, e.g. "info".
	Level string `yaml:"level"`

	// Class is the owning class; empty means logminer.DefaultClass.
	Class string `yaml:"class"`

	// Regex is the regular expression source, unanchored.
	Regex string `yaml:"regex"`

	// Line is the 1-based line of a pipe record, zero for YAML.
	Line int `yaml:"-"`
}
