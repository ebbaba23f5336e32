package logminer

import (
	"errors"
	"fmt"

	"github.com/logminer/logminer-go/internal/logfinder"
)

// Sentinel errors for the Follower lifecycle.
var (
	ErrFollowerClosed   = errors.New("follower is closed")
	ErrAlreadyFollowing = errors.New("follower is already running")
)

// Sentinel errors for log discovery. Check them with errors.Is.
var (
	ErrLogDirNotFound = logfinder.ErrLogDirNotFound
	ErrNoLogFiles     = logfinder.ErrNoLogFiles
)

// LineError wraps a parser failure with the line's position.
type LineError struct {
	Source  string
	LineNum int
	Err     error
}

func (e *LineError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("line %d: %v", e.LineNum, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.LineNum, e.Err)
}

// Unwrap returns the underlying parser error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// FollowOp identifies the follower step that failed.
type FollowOp string

const (
	FollowOpFindLatest FollowOp = "find_latest"
	FollowOpTail       FollowOp = "tail"
	FollowOpRotation   FollowOp = "rotation"
	FollowOpParse      FollowOp = "parse"
)

// FollowError reports a non-fatal failure while following a log directory.
type FollowError struct {
	Op   FollowOp
	Path string
	Err  error
}

func (e *FollowError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("follow %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("follow %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FollowError) Unwrap() error {
	return e.Err
}
