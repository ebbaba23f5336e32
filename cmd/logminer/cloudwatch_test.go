package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/spf13/cobra"

	"github.com/logminer/logminer-go/internal/cloudwatch"
)

type fakeLogsAPI struct {
	events []types.FilteredLogEvent
	input  *cloudwatchlogs.FilterLogEventsInput
}

func (f *fakeLogsAPI) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.input = params
	return &cloudwatchlogs.FilterLogEventsOutput{Events: f.events}, nil
}

func TestExecute_CloudWatch(t *testing.T) {
	dir := isolate(t)
	patterns := writeFile(t, filepath.Join(dir, "patterns.txt"),
		"info|ApplicationManager|Application ([\\w]+) has been installed\n")

	fake := &fakeLogsAPI{events: []types.FilteredLogEvent{
		{Timestamp: aws.Int64(1), LogStreamName: aws.String("node-1"), Message: aws.String(karafLine + "\n")},
		{Timestamp: aws.Int64(2), LogStreamName: aws.String("node-1"), Message: aws.String("noise\n" + karafLine)},
	}}
	orig := newLogsAPI
	newLogsAPI = func(*cobra.Command) (cloudwatch.LogsAPI, error) { return fake, nil }
	t.Cleanup(func() { newLogsAPI = orig })

	stdout, stderr, code := run(t, "cloudwatch", patterns, "/onos/controller", "--stream", "node-1", "--filter", "Application")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d records, want 2:\n%s", len(lines), stdout)
	}
	if !strings.Contains(lines[1], `"source":"cloudwatch:/onos/controller","line":3`) {
		t.Errorf("second record = %s, want source and line number", lines[1])
	}

	if got := aws.ToString(fake.input.LogGroupName); got != "/onos/controller" {
		t.Errorf("LogGroupName = %q", got)
	}
	if len(fake.input.LogStreamNames) != 1 || fake.input.LogStreamNames[0] != "node-1" {
		t.Errorf("LogStreamNames = %v", fake.input.LogStreamNames)
	}
	if aws.ToString(fake.input.FilterPattern) != "Application" {
		t.Errorf("FilterPattern = %q", aws.ToString(fake.input.FilterPattern))
	}
}

func TestExecute_CloudWatchInvalidRange(t *testing.T) {
	dir := isolate(t)
	patterns := writeFile(t, filepath.Join(dir, "patterns.txt"), "info|A|x\n")

	orig := newLogsAPI
	newLogsAPI = func(*cobra.Command) (cloudwatch.LogsAPI, error) { return &fakeLogsAPI{}, nil }
	t.Cleanup(func() { newLogsAPI = orig })

	_, stderr, code := run(t, "cloudwatch", patterns, "group",
		"--since", "2024-01-15T13:00:00Z", "--until", "2024-01-15T12:00:00Z")
	if code != 1 || !strings.Contains(stderr, "before start time") {
		t.Errorf("code = %d, stderr = %q", code, stderr)
	}
}

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"2024-01-15T10:00:00Z", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), false},
		{"30m", now.Add(-30 * time.Minute), false},
		{"-5m", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTimeFlag("since", tt.value, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeFlag(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTimeFlag(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
