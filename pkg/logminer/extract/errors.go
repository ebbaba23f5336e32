package extract

import (
	"errors"
	"fmt"
)

// ErrNotDirectory is returned when the source root is not a directory.
var ErrNotDirectory = errors.New("source root is not a directory")

// ParseError reports source text the extractor could not scan.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
