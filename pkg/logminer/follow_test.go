package logminer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logminer/logminer-go/pkg/logminer"
)

func newTestFollower(t *testing.T, dir string, opts ...logminer.FollowOption) *logminer.Follower {
	t.Helper()
	base := []logminer.FollowOption{
		logminer.WithLogDir(dir),
		logminer.WithFollowParser(logminer.NewLineParser(onosRepository(t))),
		logminer.WithPollInterval(100 * time.Millisecond),
		logminer.WithPolling(true),
	}
	f, err := logminer.NewFollower(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFollower_FromStartAndAppend(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "karaf.log", sampleLog)

	f := newTestFollower(t, dir, logminer.WithFromStart(true))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recs, errs, err := f.Follow(ctx)
	require.NoError(t, err)

	expect := func(want string, wantLine int) {
		t.Helper()
		select {
		case rec := <-recs:
			require.Equal(t, []string{want}, rec.Captures)
			assert.Equal(t, wantLine, rec.LineNum)
			assert.Equal(t, path, rec.Source)
		case err := <-errs:
			t.Fatalf("unexpected error: %v", err)
		case <-ctx.Done():
			t.Fatalf("timeout waiting for %s", want)
		}
	}
	expect("org.onosproject.ovsdbhostprovider", 1)
	expect("org.onosproject.fwd", 3)

	out, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer out.Close()
	_, err = out.WriteString("t | INFO | th | ApplicationManager | o | Application org.onosproject.gui has been installed\n")
	require.NoError(t, err)
	require.NoError(t, out.Sync())

	expect("org.onosproject.gui", 6)
}

func TestFollower_FromEndHasNoLineNumbers(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "karaf.log", sampleLog)

	f := newTestFollower(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recs, errs, err := f.Follow(ctx)
	require.NoError(t, err)

	// Give the follower time to seek to the end
	time.Sleep(200 * time.Millisecond)

	out, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer out.Close()
	_, err = out.WriteString("t | INFO | th | ApplicationManager | o | Application org.onosproject.gui has been installed\n")
	require.NoError(t, err)
	require.NoError(t, out.Sync())

	select {
	case rec := <-recs:
		assert.Equal(t, []string{"org.onosproject.gui"}, rec.Captures)
		assert.Zero(t, rec.LineNum)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-ctx.Done():
		t.Fatal("timeout waiting for appended record")
	}
}

func TestFollower_SwitchesToNewerFile(t *testing.T) {
	dir := t.TempDir()
	old := writeLog(t, dir, "karaf.log.1", "")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	f := newTestFollower(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recs, errs, err := f.Follow(ctx)
	require.NoError(t, err)

	// Give the follower time to open the old file
	time.Sleep(200 * time.Millisecond)

	newer := filepath.Join(dir, "karaf.log")
	require.NoError(t, os.WriteFile(newer, nil, 0o644))

	// Wait for rotation detection, then append to the new file
	time.Sleep(400 * time.Millisecond)
	out, err := os.OpenFile(newer, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer out.Close()
	_, err = out.WriteString("t | INFO | th | ApplicationManager | o | Application org.onosproject.fwd has been activated\n")
	require.NoError(t, err)
	require.NoError(t, out.Sync())

	select {
	case rec := <-recs:
		assert.Equal(t, newer, rec.Source)
		assert.Equal(t, []string{"org.onosproject.fwd"}, rec.Captures)
		assert.Equal(t, 1, rec.LineNum, "newer files are read from their start")
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-ctx.Done():
		t.Fatal("timeout waiting for record from newer file")
	}
}

func TestFollower_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "karaf.log", "")
	f := newTestFollower(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := f.Follow(ctx)
	require.NoError(t, err)

	_, _, err = f.Follow(ctx)
	assert.True(t, errors.Is(err, logminer.ErrAlreadyFollowing))

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, _, err = f.Follow(ctx)
	assert.True(t, errors.Is(err, logminer.ErrFollowerClosed))
}

func TestFollower_ChannelsCloseOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "karaf.log", "")
	f := newTestFollower(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	recs, errs, err := f.Follow(ctx)
	require.NoError(t, err)
	cancel()

	timeout := time.After(5 * time.Second)
	for recs != nil || errs != nil {
		select {
		case _, ok := <-recs:
			if !ok {
				recs = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-timeout:
			t.Fatal("channels not closed after cancel")
		}
	}
}

func TestFollower_NoLogFiles(t *testing.T) {
	f := newTestFollower(t, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, errs, err := f.Follow(ctx)
	require.NoError(t, err)

	select {
	case err := <-errs:
		var followErr *logminer.FollowError
		require.True(t, errors.As(err, &followErr))
		assert.Equal(t, logminer.FollowOpFindLatest, followErr.Op)
	case <-ctx.Done():
		t.Fatal("timeout waiting for error")
	}
}

func TestNewFollower_Validation(t *testing.T) {
	_, err := logminer.NewFollower(logminer.WithLogDir(t.TempDir()))
	assert.Error(t, err, "parser is required")

	_, err = logminer.NewFollower(
		logminer.WithLogDir(t.TempDir()),
		logminer.WithFollowParser(logminer.NewLineParser(nil)),
		logminer.WithPollInterval(0),
	)
	assert.Error(t, err)

	_, err = logminer.NewFollower(
		logminer.WithLogDir(filepath.Join(t.TempDir(), "missing")),
		logminer.WithFollowParser(logminer.NewLineParser(nil)),
	)
	assert.Error(t, err)
}
