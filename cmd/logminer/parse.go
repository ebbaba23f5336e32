package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/spf13/cobra"

	"github.com/logminer/logminer-go/internal/metrics"
	"github.com/logminer/logminer-go/internal/query"
	"github.com/logminer/logminer-go/pkg/logminer"
)

const parseUsage = "Usage: logminer parse <patternsFile> <logsDirectory>"

var (
	// parse flags
	extraPatterns    []string
	follow           bool
	fromStart        bool
	format           string
	queryExpr        string
	includeGlobs     []string
	includeUnmatched bool
	maxLineBytes     int
	pollInterval     time.Duration
	metricsTextfile  string
)

var parseCmd = &cobra.Command{
	Use:   "parse <patternsFile> <logsDirectory>",
	Short: "Match log files against a pattern file",
	Long: `Match every log file in a directory against the statements of a pattern
file and print one record per recognised line.

Lines have six '|'-separated fields; the fourth names the class and the sixth
is the message. Malformed lines and lines without candidate statements are
skipped.

Examples:
  # Match every file in the directory
  logminer parse patterns.txt /var/log/onos

  # Try a second pattern file for lines the first does not recognise
  logminer parse patterns.txt /var/log/onos --patterns extra.yaml

  # Follow the newest file as it grows
  logminer parse patterns.txt /var/log/onos --follow

  # Keep only warnings from one class
  logminer parse patterns.txt logs -q "level == 'warn' && class == 'DeviceManager'"`,
	Args: cobra.ArbitraryArgs,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringSliceVarP(&extraPatterns, "patterns", "p", nil,
		"Additional pattern files, tried in order after the first (can be repeated)")
	parseCmd.Flags().BoolVar(&follow, "follow", false,
		"Follow the newest log file instead of parsing the directory once")
	parseCmd.Flags().BoolVar(&fromStart, "from-start", false,
		"With --follow, read the newest file from its beginning")
	addOutputFlags(parseCmd)
	parseCmd.Flags().StringSliceVar(&includeGlobs, "include", nil,
		"Log file name globs (default: every file)")
	parseCmd.Flags().BoolVar(&includeUnmatched, "include-unmatched", false,
		"Also print lines whose candidates all failed to match")
	parseCmd.Flags().IntVar(&maxLineBytes, "max-line-bytes", logminer.DefaultMaxLineBytes,
		"Longest accepted log line")
	parseCmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second,
		"With --follow, how often to check for a newer log file")
	parseCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write Prometheus line counters to this file when done")

	rootCmd.AddCommand(parseCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&format, "format", "f", "jsonl",
		"Output format: jsonl, pretty, text")
	cmd.Flags().StringVarP(&queryExpr, "query", "q", "",
		"JMESPath expression; only records for which it is truthy are printed")
}

func runParse(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(cmd.OutOrStdout(), parseUsage)
		return nil
	}

	parser, err := buildParser(append([]string{args[0]}, extraPatterns...))
	if err != nil {
		return err
	}
	sink, err := newRecordSink(settings.Output.Format, queryExpr, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	m, err := newMetrics(settings.Metrics.Textfile)
	if err != nil {
		return err
	}

	if follow {
		err = followDir(cmd.Context(), args[1], parser, sink)
	} else {
		opts := []logminer.ParseOption{
			logminer.WithParser(parser),
			logminer.WithInclude(settings.Parse.Include...),
			logminer.WithIncludeUnmatched(settings.Parse.IncludeUnmatched),
			logminer.WithMaxLineBytes(settings.Parse.MaxLineBytes),
			logminer.WithParseLogger(logger),
		}
		if m != nil {
			opts = append(opts, logminer.WithLineObserver(m.ObserveLine))
		}
		err = drain(logminer.ParseDir(cmd.Context(), args[1], opts...), sink)
	}
	logger.Debug("parse finished", "records", sink.count)

	if werr := writeMetrics(m, settings.Metrics.Textfile); err == nil {
		err = werr
	}
	return err
}

// drain prints every record of seq. Per-line parser errors are logged and
// skipped; any other error ends the run.
func drain(seq iter.Seq2[logminer.ParsedLog, error], sink *recordSink) error {
	for rec, err := range seq {
		if err != nil {
			var lineErr *logminer.LineError
			if errors.As(err, &lineErr) {
				logger.Warn("failed to parse line", "source", lineErr.Source, "line", lineErr.LineNum, "error", lineErr.Err)
				continue
			}
			return err
		}
		if err := sink.emit(rec); err != nil {
			return err
		}
	}
	return nil
}

func followDir(ctx context.Context, dir string, parser logminer.Parser, sink *recordSink) error {
	f, err := logminer.NewFollower(
		logminer.WithLogDir(dir),
		logminer.WithFollowParser(parser),
		logminer.WithPollInterval(settings.Parse.PollInterval),
		logminer.WithFromStart(fromStart),
		logminer.WithFollowInclude(settings.Parse.Include...),
		logminer.WithFollowIncludeUnmatched(settings.Parse.IncludeUnmatched),
		logminer.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer f.Close()

	records, errs, err := f.Follow(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// The follower stopped; report what made it stop.
				for err := range drainable(errs) {
					if err := followFailure(err); err != nil {
						return err
					}
				}
				return nil
			}
			if err := sink.emit(rec); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err := followFailure(err); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// drainable returns a closed channel in place of nil.
func drainable(errs <-chan error) <-chan error {
	if errs == nil {
		closed := make(chan error)
		close(closed)
		return closed
	}
	return errs
}

// followFailure logs recoverable follow errors and returns the one that
// means there was nothing to follow.
func followFailure(err error) error {
	var fe *logminer.FollowError
	if errors.As(err, &fe) && fe.Op == logminer.FollowOpFindLatest {
		return err
	}
	logger.Warn("follow error", "error", err)
	return nil
}

// recordSink filters records and writes them in the output format.
type recordSink struct {
	format string
	filter *query.Filter
	out    io.Writer
	count  int
}

func newRecordSink(format, expr string, out io.Writer) (*recordSink, error) {
	if !ValidFormats[format] {
		return nil, fmt.Errorf("unknown format: %s", format)
	}
	s := &recordSink{format: format, out: out}
	if expr != "" {
		f, err := query.Compile(expr)
		if err != nil {
			return nil, err
		}
		s.filter = f
	}
	return s, nil
}

func (s *recordSink) emit(rec logminer.ParsedLog) error {
	if s.filter != nil {
		ok, err := s.filter.Match(rec)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	s.count++
	return OutputRecord(s.format, rec, s.out)
}

// newMetrics returns nil when no textfile is configured.
func newMetrics(textfile string) (*metrics.Metrics, error) {
	if textfile == "" {
		return nil, nil
	}
	return metrics.New()
}

func writeMetrics(m *metrics.Metrics, textfile string) error {
	if m == nil {
		return nil
	}
	if err := m.WriteTextfile(textfile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	logger.Debug("wrote metrics", "path", textfile)
	return nil
}
