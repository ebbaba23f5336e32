package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/logminer/logminer-go/internal/safefile"
	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

// Summary counts the results of an analysis run.
type Summary struct {
	// Files is the number of source files analyzed successfully.
	Files int `json:"files"`
	// Logs is the number of calls with a string literal message.
	Logs int `json:"logs"`
	// Written is the number of statements stored.
	Written int `json:"written"`
	// Skipped is the number of templates that did not compile.
	Skipped int `json:"skipped"`
	// Failed is the number of source files that could not be analyzed.
	Failed int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Analyzed %d logs in %d files", s.Logs, s.Files)
}

// Analyzer walks a source tree and writes one statement per logging call
// with a literal message.
type Analyzer struct {
	root   string
	output string
	cfg    config
}

// NewAnalyzer returns an Analyzer reading sources under root and writing
// the pattern file to output.
func NewAnalyzer(root, output string, opts ...Option) (*Analyzer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if root == "" {
		return nil, errors.New("source root is required")
	}
	if len(cfg.extractors) == 0 {
		return nil, errors.New("no extractors configured")
	}
	if cfg.format == "" && output != "" {
		cfg.format = pattern.DetectFormat(output)
	}
	return &Analyzer{root: root, output: output, cfg: *cfg}, nil
}

// Run analyzes the tree and writes the output file, which is created only
// once root is known to be a directory. The file is closed on every path.
func (a *Analyzer) Run(ctx context.Context) (sum Summary, err error) {
	if err := a.checkRoot(); err != nil {
		return Summary{}, err
	}
	if a.output == "" {
		return Summary{}, errors.New("output file is required")
	}

	w, err := pattern.Create(a.output, a.cfg.format)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing output: %w", cerr)
		}
	}()

	return a.RunTo(ctx, w)
}

// RunTo analyzes the tree and writes statements to w. The caller closes w.
func (a *Analyzer) RunTo(ctx context.Context, w *pattern.Writer) (Summary, error) {
	var sum Summary
	if err := a.checkRoot(); err != nil {
		return sum, err
	}

	include := a.cfg.include
	if len(include) == 0 {
		include = a.cfg.defaultInclude()
	}
	files, err := FindSources(a.root, include, a.cfg.exclude)
	if err != nil {
		return sum, fmt.Errorf("finding sources: %w", err)
	}
	a.cfg.logger.Debug("analyzing sources", "root", a.root, "files", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		ex := a.cfg.extractors[strings.ToLower(filepath.Ext(path))]
		if ex == nil {
			a.cfg.logger.Debug("no extractor for file", "file", path)
			continue
		}

		sites, err := a.extractFile(ctx, ex, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			a.cfg.logger.Warn("failed to analyze file", "file", path, "error", err)
			sum.Failed++
			a.observeFile(FileFailed)
			continue
		}
		sum.Files++
		a.observeFile(FileAnalyzed)

		for _, site := range sites {
			if err := a.emit(site, w, &sum); err != nil {
				return sum, err
			}
		}
	}

	if err := w.Flush(); err != nil {
		return sum, fmt.Errorf("writing output: %w", err)
	}
	return sum, nil
}

func (a *Analyzer) checkRoot() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, a.root)
	}
	return nil
}

func (a *Analyzer) extractFile(ctx context.Context, ex Extractor, path string) ([]CallSite, error) {
	src, err := safefile.ReadRegular(path, a.cfg.maxFileBytes)
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, path, src)
}

// emit turns one call site into a statement. Only write errors are returned.
func (a *Analyzer) emit(site CallSite, w *pattern.Writer, sum *Summary) error {
	log := a.cfg.logger
	if !site.HasArgs {
		log.Warn("cannot resolve logger statement", "call", site.String(), "file", site.File, "line", site.Line)
		return nil
	}
	if !site.Literal {
		return nil
	}
	sum.Logs++

	re, err := a.cfg.compiler.Compile(site.Template)
	if err != nil {
		log.Warn("cannot convert template to regex", "template", site.Template, "file", site.File, "line", site.Line, "error", err)
		sum.Skipped++
		a.observeStatement(StatementCompileFailed)
		return nil
	}

	class, resolved := ResolveOwner(site)
	if !resolved {
		a.observeStatement(StatementUnresolvedOwner)
		if site.SimpleReceiver() {
			log.Debug("no enclosing class declares receiver", "receiver", site.Receiver, "file", site.File, "line", site.Line)
		} else {
			log.Warn("cannot resolve parent class", "call", site.String(), "file", site.File, "line", site.Line)
		}
	}

	stmt, err := logminer.NewLogStatement(site.Level(), class, re)
	if err != nil {
		log.Warn("cannot convert template to regex", "template", site.Template, "file", site.File, "line", site.Line, "error", err)
		sum.Skipped++
		a.observeStatement(StatementCompileFailed)
		return nil
	}
	if err := w.Write(stmt); err != nil {
		return fmt.Errorf("writing statement: %w", err)
	}
	sum.Written++
	a.observeStatement(StatementWritten)
	return nil
}

func (a *Analyzer) observeFile(o FileOutcome) {
	if a.cfg.onFile != nil {
		a.cfg.onFile(o)
	}
}

func (a *Analyzer) observeStatement(o StatementOutcome) {
	if a.cfg.onStatement != nil {
		a.cfg.onStatement(o)
	}
}
