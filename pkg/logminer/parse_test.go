package logminer_test

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logminer/logminer-go/pkg/logminer"
)

const sampleLog = `2016-12-21 17:10:56,844 | INFO  | -message-handler | ApplicationManager| 76 - core | Application org.onosproject.ovsdbhostprovider has been installed
this line is not a log record
2016-12-21 17:10:57,001 | INFO  | -message-handler | ApplicationManager| 76 - core | Application org.onosproject.fwd has been activated
2016-12-21 17:10:57,002 | WARN  | -message-handler | ApplicationManager| 76 - core | Something unexpected
2016-12-21 17:10:57,003 | INFO  | -event-loop | DeviceManager| 80 - core | Device of:0001 connected
`

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", sampleLog)

	recs, err := logminer.ParseFileAll(context.Background(), path, logminer.WithRepository(onosRepository(t)))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, []string{"org.onosproject.ovsdbhostprovider"}, recs[0].Captures)
	assert.Equal(t, path, recs[0].Source)
	assert.Equal(t, 1, recs[0].LineNum)

	assert.Equal(t, []string{"org.onosproject.fwd"}, recs[1].Captures)
	assert.Equal(t, 3, recs[1].LineNum)
}

func TestParseFile_IncludeUnmatched(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", sampleLog)

	recs, err := logminer.ParseFileAll(context.Background(), path,
		logminer.WithRepository(onosRepository(t)),
		logminer.WithIncludeUnmatched(true),
	)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.False(t, recs[2].Matched())
	assert.Equal(t, "Something unexpected", recs[2].Message)
	assert.Equal(t, 4, recs[2].LineNum)
}

func TestParseFile_LineObserver(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", sampleLog)

	counts := map[logminer.LineOutcome]int{}
	_, err := logminer.ParseFileAll(context.Background(), path,
		logminer.WithRepository(onosRepository(t)),
		logminer.WithLineObserver(func(o logminer.LineOutcome) { counts[o]++ }),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[logminer.OutcomeMatched])
	assert.Equal(t, 1, counts[logminer.OutcomeUnmatched])
	assert.Equal(t, 1, counts[logminer.OutcomeMalformed])
	assert.Equal(t, 1, counts[logminer.OutcomeNoCandidates])
}

func TestParseFile_NoParser(t *testing.T) {
	_, err := logminer.ParseFileAll(context.Background(), "whatever.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser configured")
}

func TestParseFile_InvalidMaxLineBytes(t *testing.T) {
	_, err := logminer.ParseFileAll(context.Background(), "whatever.log",
		logminer.WithRepository(onosRepository(t)),
		logminer.WithMaxLineBytes(0),
	)
	assert.Error(t, err)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := logminer.ParseFileAll(context.Background(), filepath.Join(t.TempDir(), "missing.log"),
		logminer.WithRepository(onosRepository(t)),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseFile_LineTooLong(t *testing.T) {
	dir := t.TempDir()
	long := writeLog(t, dir, "long.log", strings.Repeat("x", 200)+"\n")
	short := writeLog(t, dir, "short.log", strings.Repeat("x", 50)+"\n")

	_, err := logminer.ParseFileAll(context.Background(), long,
		logminer.WithRepository(onosRepository(t)),
		logminer.WithMaxLineBytes(100),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, bufio.ErrTooLong)

	_, err = logminer.ParseFileAll(context.Background(), short,
		logminer.WithRepository(onosRepository(t)),
		logminer.WithMaxLineBytes(100),
	)
	assert.NoError(t, err)
}

func TestParseReader_MaxLineBytesBelowDefaultBuffer(t *testing.T) {
	line := strings.Repeat("y", 70*1024) + "\n"

	var errs []error
	for _, err := range logminer.ParseReader(context.Background(), strings.NewReader(line), "stdin",
		logminer.WithRepository(onosRepository(t)),
		logminer.WithMaxLineBytes(1024),
	) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], bufio.ErrTooLong)
}

func TestParseFile_ParserErrors(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", "one\ntwo\n")
	boom := errors.New("boom")
	failing := logminer.ParserFunc(func(ctx context.Context, line string) (*logminer.ParsedLog, error) {
		return nil, boom
	})

	var errs []error
	for _, err := range logminer.ParseFile(context.Background(), path, logminer.WithParser(failing)) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 2)
	var lineErr *logminer.LineError
	require.True(t, errors.As(errs[1], &lineErr))
	assert.Equal(t, 2, lineErr.LineNum)
	assert.ErrorIs(t, errs[1], boom)

	errs = nil
	for _, err := range logminer.ParseFile(context.Background(), path,
		logminer.WithParser(failing),
		logminer.WithStopOnError(true),
	) {
		errs = append(errs, err)
	}
	assert.Len(t, errs, 1)
}

func TestParseFile_Cancelled(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", sampleLog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := logminer.ParseFileAll(ctx, path, logminer.WithRepository(onosRepository(t)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFile_EarlyBreak(t *testing.T) {
	path := writeLog(t, t.TempDir(), "karaf.log", sampleLog)

	n := 0
	for _, err := range logminer.ParseFile(context.Background(), path, logminer.WithRepository(onosRepository(t))) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "b.log", sampleLog)
	writeLog(t, dir, "a.log", sampleLog)
	writeLog(t, dir, "notes.txt", sampleLog)

	var sources []string
	for rec, err := range logminer.ParseDir(context.Background(), dir,
		logminer.WithRepository(onosRepository(t)),
		logminer.WithInclude("*.log"),
	) {
		require.NoError(t, err)
		sources = append(sources, filepath.Base(rec.Source))
	}
	assert.Equal(t, []string{"a.log", "a.log", "b.log", "b.log"}, sources)
}

func TestParseDir_NotADirectory(t *testing.T) {
	path := writeLog(t, t.TempDir(), "a.log", sampleLog)

	var gotErr error
	for _, err := range logminer.ParseDir(context.Background(), path, logminer.WithRepository(onosRepository(t))) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestParseReader(t *testing.T) {
	var n int
	for rec, err := range logminer.ParseReader(context.Background(), strings.NewReader(sampleLog), "stdin",
		logminer.WithRepository(onosRepository(t)),
	) {
		require.NoError(t, err)
		assert.Equal(t, "stdin", rec.Source)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestParseLines(t *testing.T) {
	lines := func(yield func(string, error) bool) {
		for _, l := range strings.Split(strings.TrimSpace(sampleLog), "\n") {
			if !yield(l, nil) {
				return
			}
		}
	}

	recs := make([]logminer.ParsedLog, 0, 2)
	for rec, err := range logminer.ParseLines(context.Background(), lines, "remote", logminer.WithRepository(onosRepository(t))) {
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, "remote", recs[0].Source)
	assert.Equal(t, 1, recs[0].LineNum)
	assert.Equal(t, 3, recs[1].LineNum)
}

func TestParseLines_SourceError(t *testing.T) {
	boom := errors.New("page fetch failed")
	lines := func(yield func(string, error) bool) {
		yield("", boom)
	}

	var gotErr error
	for _, err := range logminer.ParseLines(context.Background(), lines, "remote", logminer.WithRepository(onosRepository(t))) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, boom)
}
