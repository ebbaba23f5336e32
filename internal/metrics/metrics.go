// Package metrics counts what a run did and writes the counts in the
// node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/extract"
)

const namespace = "logminer"

// Metrics holds the run counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LinesTotal      *prometheus.CounterVec
	StatementsTotal *prometheus.CounterVec
	FilesTotal      *prometheus.CounterVec
}

// New returns Metrics with every counter registered.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_total",
				Help:      "Log lines read, by outcome.",
			},
			[]string{"result"},
		),
		StatementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Logging statements found in sources, by outcome.",
			},
			[]string{"result"},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Source files analyzed, by outcome.",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.LinesTotal, m.StatementsTotal, m.FilesTotal} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLine counts one parsed line. It fits logminer.WithLineObserver.
func (m *Metrics) ObserveLine(o logminer.LineOutcome) {
	m.LinesTotal.WithLabelValues(o.String()).Inc()
}

// ObserveStatement counts one call site. It fits extract.WithStatementObserver.
func (m *Metrics) ObserveStatement(o extract.StatementOutcome) {
	m.StatementsTotal.WithLabelValues(o.String()).Inc()
}

// ObserveFile counts one source file. It fits extract.WithFileObserver.
func (m *Metrics) ObserveFile(o extract.FileOutcome) {
	m.FilesTotal.WithLabelValues(o.String()).Inc()
}

// WriteTextfile writes every counter to path for the node exporter's
// textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
