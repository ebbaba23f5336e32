package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/logminer/logminer-go/internal/config"
	"github.com/logminer/logminer-go/internal/wasm"
	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/extract"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

const analyzeUsage = "Usage: logminer analyze <sourceDirectory> <outputFile>"

var (
	// analyze flags
	sourceInclude []string
	exclude       []string
	placeholder   string
	patternFormat string
	plugins       []string
	pluginTimeout time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <sourceDirectory> <outputFile>",
	Short: "Extract log statements from a source tree into a pattern file",
	Long: `Walk a source tree, find every logging call whose message is a string
literal and write one pattern record per call.

Each "{}" placeholder in a message becomes a capture group. The owning class
is the nearest enclosing class that declares the logger receiver; calls whose
owner cannot be found are stored under Default-Class.

Java sources are analyzed natively. Other languages can be handled by Wasm
plugins registered per file extension.

Examples:
  # Write a pipe-delimited pattern file
  logminer analyze src/ patterns.txt

  # Write YAML and skip tests
  logminer analyze src/ patterns.yaml --exclude '**/test/**'

  # Match placeholders against any non-space run
  logminer analyze src/ patterns.txt --placeholder '(\S+)'

  # Analyze Kotlin sources with a plugin
  logminer analyze src/ patterns.txt --plugin .kt=plugins/kotlin.wasm`,
	Args: cobra.ArbitraryArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&sourceInclude, "source-include", nil,
		"Source globs relative to the source directory (default: **/*<ext> per extractor)")
	analyzeCmd.Flags().StringSliceVar(&exclude, "exclude", nil,
		"Source globs to skip (can be repeated)")
	analyzeCmd.Flags().StringVar(&placeholder, "placeholder", logminer.DefaultPlaceholderGroup,
		"Capture group substituted for each {} placeholder")
	analyzeCmd.Flags().StringVar(&patternFormat, "pattern-format", "",
		"Output format: pipe, yaml (default: from the output file extension)")
	analyzeCmd.Flags().StringSliceVar(&plugins, "plugin", nil,
		"Wasm extractor for an extension, as ext=path (can be repeated)")
	analyzeCmd.Flags().DurationVar(&pluginTimeout, "plugin-timeout", wasm.DefaultTimeout,
		"Timeout for one plugin call")
	analyzeCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write Prometheus analysis counters to this file when done")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(cmd.OutOrStdout(), analyzeUsage)
		return nil
	}
	ctx := cmd.Context()
	cfg := settings.Analyze

	comp, err := logminer.NewCompiler(cfg.Placeholder)
	if err != nil {
		return err
	}
	opts := []extract.Option{
		extract.WithLogger(logger),
		extract.WithCompiler(comp),
		extract.WithExclude(cfg.Exclude...),
	}
	if cfg.Format != "" {
		format, _ := pattern.ParseFormat(cfg.Format)
		opts = append(opts, extract.WithFormat(format))
	}
	if len(cfg.Include) > 0 {
		opts = append(opts, extract.WithInclude(cfg.Include...))
	}

	pluginOpts, cleanup, err := loadPlugins(ctx, cfg.Plugins, cfg.PluginTimeout)
	if err != nil {
		return err
	}
	defer cleanup()
	opts = append(opts, pluginOpts...)

	m, err := newMetrics(settings.Metrics.Textfile)
	if err != nil {
		return err
	}
	if m != nil {
		opts = append(opts,
			extract.WithFileObserver(m.ObserveFile),
			extract.WithStatementObserver(m.ObserveStatement),
		)
	}

	a, err := extract.NewAnalyzer(args[0], args[1], opts...)
	if err != nil {
		return err
	}
	sum, err := a.Run(ctx)
	if err != nil {
		if errors.Is(err, extract.ErrNotDirectory) {
			return fmt.Errorf("specify a source directory: %w", err)
		}
		return err
	}
	logger.Debug("analysis finished", "files", sum.Files, "logs", sum.Logs,
		"written", sum.Written, "skipped", sum.Skipped, "failed", sum.Failed)

	fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	return writeMetrics(m, settings.Metrics.Textfile)
}

// loadPlugins loads every ext=path plugin and registers it as the extractor
// for its extension. The cleanup function is always non-nil, even on error.
func loadPlugins(ctx context.Context, entries []string, timeout time.Duration) ([]extract.Option, func(), error) {
	var opts []extract.Option
	var loaded []*wasm.Extractor
	cleanup := func() {
		for _, e := range loaded {
			e.Close()
		}
	}

	for i, entry := range entries {
		ext, path, err := config.ParsePlugin(entry)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		e, err := wasm.Load(ctx, path, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("plugin %d: %w", i+1, err)
		}
		if timeout > 0 {
			e.SetTimeout(timeout)
		}
		loaded = append(loaded, e)
		opts = append(opts, extract.WithExtractor(ext, e))
		logger.Debug("loaded plugin", "ext", ext, "path", path)
	}
	return opts, cleanup, nil
}
