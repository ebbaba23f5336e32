// Package cloudwatch reads log lines from CloudWatch Logs.
package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// LogsAPI is the subset of the CloudWatch Logs API used here.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// NewClient loads the shared AWS configuration and returns a CloudWatch Logs
// client. Empty region or profile fall back to the SDK's default resolution.
func NewClient(ctx context.Context, region, profile string) (*cloudwatchlogs.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return cloudwatchlogs.NewFromConfig(cfg), nil
}

// Query selects the events to read.
type Query struct {
	// Group is the log group name. Required.
	Group string
	// Streams restricts the read to the named streams.
	Streams []string
	// Filter is a CloudWatch filter pattern.
	Filter string
	// Start and End bound event timestamps; zero means unbounded.
	Start, End time.Time
}

// Event is one log event.
type Event struct {
	Timestamp time.Time
	Stream    string
	Message   string
}

// Source pages through FilterLogEvents.
type Source struct {
	api LogsAPI
	q   Query
}

// NewSource returns a Source reading q through api.
func NewSource(api LogsAPI, q Query) (*Source, error) {
	if api == nil {
		return nil, errors.New("cloudwatch client is required")
	}
	if q.Group == "" {
		return nil, errors.New("log group is required")
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return nil, fmt.Errorf("end time %s is before start time %s", q.End.Format(time.RFC3339), q.Start.Format(time.RFC3339))
	}
	return &Source{api: api, q: q}, nil
}

// Name identifies the source in parsed records.
func (s *Source) Name() string {
	return "cloudwatch:" + s.q.Group
}

func (s *Source) input(next *string) *cloudwatchlogs.FilterLogEventsInput {
	in := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(s.q.Group),
		NextToken:    next,
	}
	if len(s.q.Streams) > 0 {
		in.LogStreamNames = s.q.Streams
	}
	if s.q.Filter != "" {
		in.FilterPattern = aws.String(s.q.Filter)
	}
	if !s.q.Start.IsZero() {
		in.StartTime = aws.Int64(s.q.Start.UnixMilli())
	}
	if !s.q.End.IsZero() {
		in.EndTime = aws.Int64(s.q.End.UnixMilli())
	}
	return in
}

// Events yields every event of the query, page by page. A request error
// ends the sequence.
func (s *Source) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		var next *string
		for {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			out, err := s.api.FilterLogEvents(ctx, s.input(next))
			if err != nil {
				yield(Event{}, fmt.Errorf("filtering %s: %w", s.q.Group, err))
				return
			}
			for _, e := range out.Events {
				ev := Event{
					Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)),
					Stream:    aws.ToString(e.LogStreamName),
					Message:   aws.ToString(e.Message),
				}
				if !yield(ev, nil) {
					return
				}
			}
			// The service may repeat the last token at the end.
			if out.NextToken == nil || (next != nil && aws.ToString(out.NextToken) == aws.ToString(next)) {
				return
			}
			next = out.NextToken
		}
	}
}

// Lines yields the lines of every event message. Multi-line messages yield
// one line each; a trailing line break does not add an empty line.
func (s *Source) Lines(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for ev, err := range s.Events(ctx) {
			if err != nil {
				yield("", err)
				return
			}
			msg := strings.TrimRight(ev.Message, "\r\n")
			for line := range strings.Lines(msg) {
				if !yield(strings.TrimRight(line, "\r\n"), nil) {
					return
				}
			}
		}
	}
}
