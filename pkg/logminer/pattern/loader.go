package pattern

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/logminer/logminer-go/internal/safefile"
	"github.com/logminer/logminer-go/pkg/logminer"
)

// sanitizePathError removes the path from os.PathError so that error
// messages don't expose file system paths.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

const (
	// MaxPatternFileSize is the maximum allowed size for a pattern file (8MB).
	// Generated files for large source trees stay well below it.
	MaxPatternFileSize = 8 * 1024 * 1024

	// MaxPatternLength is the maximum allowed length for a single regex.
	MaxPatternLength = 16 * 1024

	// MaxPatternCount is the maximum number of records in a pattern file.
	MaxPatternCount = 200000

	// SupportedVersion is the currently supported YAML format version.
	SupportedVersion = 1
)

// Load reads and decodes the pattern file at path. The format is chosen by
// DetectFormat.
//
// Only regular files are read; FIFOs, devices and symlinks are rejected.
//
// Example:
//
//	f, err := pattern.Load("patterns.txt")
//	if err != nil {
//	    log.Fatalf("failed to load pattern file: %v", err)
//	}
func Load(path string) (*File, error) {
	data, err := safefile.ReadRegular(path, MaxPatternFileSize)
	if err != nil {
		switch {
		case errors.Is(err, safefile.ErrNotRegularFile):
			return nil, errors.New("pattern file must be a regular file (not FIFO, device, or special file)")
		case errors.Is(err, safefile.ErrTooLarge):
			return nil, fmt.Errorf("pattern file too large (max %d bytes)", MaxPatternFileSize)
		}
		return nil, fmt.Errorf("failed to read pattern file: %w", sanitizePathError(err))
	}
	return LoadBytes(data, DetectFormat(path))
}

// LoadBytes decodes a pattern file held in memory.
//
// Example:
//
//	data := []byte("info|Foo|Started ([\\w]+)\n")
//	f, err := pattern.LoadBytes(data, pattern.FormatPipe)
func LoadBytes(data []byte, format Format) (*File, error) {
	if len(data) > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", len(data), MaxPatternFileSize)
	}

	var f *File
	switch format {
	case FormatPipe, "":
		f = decodePipe(string(data))
	case FormatYAML:
		if len(data) == 0 {
			return nil, errors.New("pattern file is empty")
		}
		f = &File{}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		f.Format = FormatYAML
	default:
		return nil, fmt.Errorf("unknown pattern file format %q", format)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// decodePipe splits data into records. Blank lines and lines that do not
// have exactly three fields are skipped; the latter are counted in Skipped.
// Fields are kept verbatim.
func decodePipe(data string) *File {
	f := &File{Version: SupportedVersion, Format: FormatPipe}
	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := logminer.SplitRecord(line)
		if len(fields) != 3 {
			f.Skipped++
			continue
		}
		f.Patterns = append(f.Patterns, Record{
			Level: fields[0],
			Class: fields[1],
			Regex: fields[2],
			Line:  i + 1,
		})
	}
	return f
}

// Validate performs schema-level validation. It checks the version and
// required level of YAML files, the record count and the regex length.
//
// Regexes are not compiled here; NewRepository does that.
func (f *File) Validate() error {
	if f.Format == FormatYAML {
		if f.Version != SupportedVersion {
			return &ValidationError{
				Field:   "version",
				Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", f.Version, SupportedVersion),
			}
		}
	}

	if len(f.Patterns) > MaxPatternCount {
		return &ValidationError{
			Field:   "patterns",
			Message: fmt.Sprintf("too many patterns (%d), maximum allowed is %d", len(f.Patterns), MaxPatternCount),
		}
	}

	for i, p := range f.Patterns {
		if p.Level == "" && f.Format == FormatYAML {
			return &PatternError{Index: i, Line: p.Line, Field: "level", Message: "level is required"}
		}
		if p.Regex == "" {
			return &PatternError{Index: i, Line: p.Line, Field: "regex", Message: "regex is required"}
		}
		if len(p.Regex) > MaxPatternLength {
			return &PatternError{
				Index:   i,
				Line:    p.Line,
				Field:   "regex",
				Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(p.Regex), MaxPatternLength),
			}
		}
	}
	return nil
}

// NewRepository compiles every record of f into a Repository, preserving
// file order within each class.
func NewRepository(f *File) (*logminer.Repository, error) {
	if f == nil {
		return nil, errors.New("pattern file is nil")
	}
	repo := logminer.NewRepository()
	for i, p := range f.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, &PatternError{
				Index:   i,
				Line:    p.Line,
				Field:   "regex",
				Message: fmt.Sprintf("invalid regex: %v", err),
				Cause:   err,
			}
		}
		stmt, err := logminer.NewLogStatement(logminer.Level(p.Level), p.Class, re)
		if err != nil {
			return nil, &PatternError{Index: i, Line: p.Line, Field: "regex", Message: err.Error(), Cause: err}
		}
		repo.Add(stmt)
	}
	return repo, nil
}

// LoadRepository loads the pattern file at path and compiles it.
func LoadRepository(path string) (*logminer.Repository, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRepository(f)
}
