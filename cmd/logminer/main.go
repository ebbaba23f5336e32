// Command logminer mines log statements from source trees and matches log
// files against the mined patterns.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/logminer/logminer-go/internal/config"
)

var (
	// global flags
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	// set by the root PersistentPreRunE
	settings *config.Config
	logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"log-level":         "log.level",
	"log-format":        "log.format",
	"format":            "output.format",
	"include":           "parse.include",
	"include-unmatched": "parse.include_unmatched",
	"max-line-bytes":    "parse.max_line_bytes",
	"poll-interval":     "parse.poll_interval",
	"source-include":    "analyze.include",
	"exclude":           "analyze.exclude",
	"placeholder":       "analyze.placeholder",
	"pattern-format":    "analyze.format",
	"plugin":            "analyze.plugins",
	"plugin-timeout":    "analyze.plugin_timeout",
	"region":            "cloudwatch.region",
	"profile":           "cloudwatch.profile",
	"metrics-textfile":  "metrics.textfile",
}

var rootCmd = &cobra.Command{
	Use:   "logminer",
	Short: "Mine log statements from sources and match logs against them",
	Long: `logminer extracts logging calls from a source tree into a pattern file
and matches log files against those patterns, emitting one structured record
per recognised line.

Settings are read from .logminer.yaml (home or working directory, or --config),
LOGMINER_* environment variables and flags, in increasing order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: .logminer.yaml in home or working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Diagnostic log format: text, json")
}

// setup loads the configuration and builds the diagnostic logger.
func setup(cmd *cobra.Command, _ []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = cfg
	logger = newLogger(cmd.ErrOrStderr(), cfg.Log, verbose)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config file", "path", used)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
