package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/logminer/logminer-go/internal/cloudwatch"
	"github.com/logminer/logminer-go/pkg/logminer"
)

const cloudwatchUsage = "Usage: logminer cloudwatch <patternsFile> <logGroup>"

var (
	// cloudwatch flags
	region  string
	profile string
	streams []string
	filter  string
	since   string
	until   string
)

// newLogsAPI is replaced in tests.
var newLogsAPI = func(cmd *cobra.Command) (cloudwatch.LogsAPI, error) {
	client, err := cloudwatch.NewClient(cmd.Context(), settings.CloudWatch.Region, settings.CloudWatch.Profile)
	if err != nil {
		return nil, err
	}
	return client, nil
}

var cloudwatchCmd = &cobra.Command{
	Use:   "cloudwatch <patternsFile> <logGroup>",
	Short: "Match CloudWatch Logs events against a pattern file",
	Long: `Read the events of a CloudWatch Logs group and match every message line
against a pattern file, exactly like parse does for local files.

AWS credentials and region come from the standard SDK chain; --region and
--profile override them.

Examples:
  # Last hour of one group
  logminer cloudwatch patterns.txt /onos/controller --since 1h

  # One stream, an absolute window, pretty output
  logminer cloudwatch patterns.txt /onos/controller --stream node-1 \
    --since 2024-01-15T12:00:00Z --until 2024-01-15T13:00:00Z -f pretty`,
	Args: cobra.ArbitraryArgs,
	RunE: runCloudWatch,
}

func init() {
	cloudwatchCmd.Flags().StringVar(&region, "region", "",
		"AWS region (default: from the SDK configuration)")
	cloudwatchCmd.Flags().StringVar(&profile, "profile", "",
		"Shared config profile")
	cloudwatchCmd.Flags().StringSliceVar(&streams, "stream", nil,
		"Log stream names (can be repeated)")
	cloudwatchCmd.Flags().StringVar(&filter, "filter", "",
		"CloudWatch filter pattern")
	cloudwatchCmd.Flags().StringVar(&since, "since", "",
		"Start time: RFC3339 timestamp or a duration before now (e.g., 30m)")
	cloudwatchCmd.Flags().StringVar(&until, "until", "",
		"End time: RFC3339 timestamp or a duration before now")
	addOutputFlags(cloudwatchCmd)
	cloudwatchCmd.Flags().BoolVar(&includeUnmatched, "include-unmatched", false,
		"Also print lines whose candidates all failed to match")
	cloudwatchCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write Prometheus line counters to this file when done")

	rootCmd.AddCommand(cloudwatchCmd)
}

func runCloudWatch(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(cmd.OutOrStdout(), cloudwatchUsage)
		return nil
	}

	now := time.Now()
	start, err := parseTimeFlag("since", since, now)
	if err != nil {
		return err
	}
	end, err := parseTimeFlag("until", until, now)
	if err != nil {
		return err
	}

	parser, err := buildParser([]string{args[0]})
	if err != nil {
		return err
	}
	sink, err := newRecordSink(settings.Output.Format, queryExpr, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	api, err := newLogsAPI(cmd)
	if err != nil {
		return err
	}
	src, err := cloudwatch.NewSource(api, cloudwatch.Query{
		Group:   args[1],
		Streams: streams,
		Filter:  filter,
		Start:   start,
		End:     end,
	})
	if err != nil {
		return err
	}

	m, err := newMetrics(settings.Metrics.Textfile)
	if err != nil {
		return err
	}
	opts := []logminer.ParseOption{
		logminer.WithParser(parser),
		logminer.WithIncludeUnmatched(settings.Parse.IncludeUnmatched),
		logminer.WithParseLogger(logger),
	}
	if m != nil {
		opts = append(opts, logminer.WithLineObserver(m.ObserveLine))
	}

	ctx := cmd.Context()
	err = drain(logminer.ParseLines(ctx, src.Lines(ctx), src.Name(), opts...), sink)
	logger.Debug("cloudwatch finished", "group", args[1], "records", sink.count)

	if werr := writeMetrics(m, settings.Metrics.Textfile); err == nil {
		err = werr
	}
	return err
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration counted back
// from now. An empty value is the zero time.
func parseTimeFlag(name, value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid --%s %q (want RFC3339 or a positive duration)", name, value)
	}
	return now.Add(-d), nil
}
