package pattern

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/logminer/logminer-go/pkg/logminer"
)

// Writer encodes statements into a pattern file.
//
// Pipe records are streamed as they are written. YAML records are buffered
// and encoded as one document on Flush. Close flushes and closes the
// underlying file when the Writer owns one.
type Writer struct {
	format  Format
	w       *bufio.Writer
	closer  io.Closer
	records []Record
	count   int
	encoded bool
	closed  bool
}

// NewWriter returns a Writer that encodes to w.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	if format == "" {
		format = FormatPipe
	}
	if format != FormatPipe && format != FormatYAML {
		return nil, fmt.Errorf("unknown pattern file format %q", format)
	}
	return &Writer{format: format, w: bufio.NewWriter(w)}, nil
}

// Create creates (or truncates) the file at path and returns a Writer for it.
// The caller must Close the Writer.
func Create(path string, format Format) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating pattern file: %w", err)
	}
	w, err := NewWriter(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Write appends stmt.
func (w *Writer) Write(stmt *logminer.LogStatement) error {
	if w.closed {
		return errors.New("pattern writer is closed")
	}
	if stmt == nil {
		return errors.New("nil statement")
	}
	w.count++
	if w.format == FormatYAML {
		w.records = append(w.records, Record{
			Level: string(stmt.Level()),
			Class: stmt.Class(),
			Regex: stmt.Pattern().String(),
		})
		return nil
	}
	if _, err := w.w.WriteString(stmt.String()); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Count returns the number of statements written so far.
func (w *Writer) Count() int { return w.count }

// Flush writes buffered data. For YAML it encodes the whole document, so it
// should be called once after the last Write. A YAML writer with no records
// still produces a document with an empty pattern list.
func (w *Writer) Flush() error {
	if w.format == FormatYAML && (!w.encoded || w.records != nil) {
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		doc := File{Version: SupportedVersion, Patterns: w.records}
		if doc.Patterns == nil {
			doc.Patterns = []Record{}
		}
		if err := enc.Encode(&doc); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		w.records = nil
		w.encoded = true
	}
	return w.w.Flush()
}

// Close flushes the Writer and closes the file it owns, if any.
// Safe to call multiple times.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
