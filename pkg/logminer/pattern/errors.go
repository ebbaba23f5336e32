package pattern

import "fmt"

// ValidationError represents a file-level validation error, such as an
// unsupported version or too many patterns.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// PatternError represents an error in a single record.
type PatternError struct {
	Index   int // 0-based index among the file's records
	Line    int // 1-based line for pipe files, zero otherwise
	Field   string
	Message string
	Cause   error // e.g. the regexp compile error
}

func (e *PatternError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("pattern[%d]: %s: %s", e.Index, e.Field, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *PatternError) Unwrap() error {
	return e.Cause
}
