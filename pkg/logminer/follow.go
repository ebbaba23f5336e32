package logminer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nxadm/tail"

	"github.com/logminer/logminer-go/internal/logfinder"
)

// followErrBuffer is the buffer size for the error channel.
const followErrBuffer = 16

// Follower tails the newest log file of a directory and parses new lines as
// they are written. It switches to a newer file when one appears.
type Follower struct {
	cfg    followConfig // immutable after creation
	logDir string
	log    *slog.Logger

	mu        sync.Mutex
	closed    bool
	cancel    context.CancelFunc
	doneCh    chan struct{}
	following bool
}

// NewFollower validates options and resolves the log directory.
// It does not start any goroutine.
func NewFollower(opts ...FollowOption) (*Follower, error) {
	cfg := applyFollowOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	logDir, err := logfinder.FindLogDir(cfg.logDir)
	if err != nil {
		return nil, fmt.Errorf("finding log directory: %w", err)
	}

	return &Follower{
		cfg:    *cfg,
		logDir: logDir,
		log:    cfg.logger,
	}, nil
}

// Follow starts following and returns the record and error channels.
// Both channels are closed when ctx ends, Close is called or a fatal error
// occurs. Follow can only be called once per Follower.
func (f *Follower) Follow(ctx context.Context) (<-chan ParsedLog, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, nil, ErrFollowerClosed
	}
	if f.following {
		return nil, nil, ErrAlreadyFollowing
	}
	f.following = true

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.doneCh = make(chan struct{})

	recCh := make(chan ParsedLog)
	errCh := make(chan error, followErrBuffer)

	go f.run(ctx, recCh, errCh)

	return recCh, errCh, nil
}

// Close stops the follower and waits for its goroutine to exit.
// Safe to call multiple times.
func (f *Follower) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
	doneCh := f.doneCh
	f.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

func (f *Follower) run(ctx context.Context, recCh chan<- ParsedLog, errCh chan<- error) {
	defer close(f.doneCh)
	defer close(recCh)
	defer close(errCh)

	current, err := logfinder.FindLatestLogFile(f.logDir, f.cfg.include...)
	if err != nil {
		sendError(ctx, errCh, &FollowError{Op: FollowOpFindLatest, Err: err})
		return
	}

	t, err := f.openTail(current, f.cfg.fromStart)
	if err != nil {
		sendError(ctx, errCh, &FollowError{Op: FollowOpTail, Path: current, Err: err})
		return
	}
	defer func() { stopTail(t) }()
	f.log.Debug("started following", "path", current, "from_start", f.cfg.fromStart)

	ticker := time.NewTicker(f.cfg.pollInterval)
	defer ticker.Stop()

	// Line numbers are known only when reading a file from its start.
	lineNum, counting := 0, f.cfg.fromStart
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Err(); err != nil {
					sendError(ctx, errCh, &FollowError{Op: FollowOpTail, Path: current, Err: err})
				}
				return
			}
			if line.Err != nil {
				sendError(ctx, errCh, &FollowError{Op: FollowOpTail, Path: current, Err: line.Err})
				continue
			}
			lineNum++
			pos := 0
			if counting {
				pos = lineNum
			}
			if !f.processLine(ctx, current, pos, line.Text, recCh, errCh) {
				return
			}
		case <-ticker.C:
			newest, err := logfinder.FindLatestLogFile(f.logDir, f.cfg.include...)
			if err != nil {
				sendError(ctx, errCh, &FollowError{Op: FollowOpRotation, Err: err})
				continue
			}
			if newest == current {
				continue
			}
			f.log.Debug("newer log file detected", "from", current, "to", newest)
			nt, err := f.openTail(newest, true)
			if err != nil {
				sendError(ctx, errCh, &FollowError{Op: FollowOpTail, Path: newest, Err: err})
				continue
			}
			stopTail(t)
			t = nt
			current = newest
			lineNum, counting = 0, true
		}
	}
}

func (f *Follower) openTail(path string, fromStart bool) (*tail.Tail, error) {
	cfg := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      f.cfg.poll,
		Logger:    tail.DiscardingLogger,
	}
	if !fromStart {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	return tail.TailFile(path, cfg)
}

func stopTail(t *tail.Tail) {
	_ = t.Stop()
	t.Cleanup()
}

// processLine reports false when ctx ended while sending.
func (f *Follower) processLine(ctx context.Context, source string, lineNum int, line string, recCh chan<- ParsedLog, errCh chan<- error) bool {
	result, err := f.cfg.parser.ParseLine(ctx, line)
	if err != nil {
		sendError(ctx, errCh, &FollowError{
			Op:   FollowOpParse,
			Path: source,
			Err:  &LineError{Source: source, LineNum: lineNum, Err: err},
		})
		return true
	}
	if result == nil || (!result.Matched() && !f.cfg.includeUnmatched) {
		return true
	}

	rec := *result
	rec.Source = source
	rec.LineNum = lineNum
	select {
	case recCh <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendError sends err without blocking during shutdown. Errors are dropped
// only if the buffer is full.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
	}
}
