// Package observability carries the batch counters and optional tracing
// for aoirun runs.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the batch-level Prometheus counters. Each runner owns an
// independent registry so repeated runs in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed   prometheus.Counter
	FilesFailed      prometheus.Counter
	RecordsRead      prometheus.Counter
	RunsBuilt        prometheus.Counter
	ContextsFailed   prometheus.Counter
	MalformedRecords prometheus.Counter
}

// NewMetrics creates and registers the batch counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_files_processed_total",
			Help: "Input files successfully aggregated.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_files_failed_total",
			Help: "Input files that failed to load or aggregate.",
		}),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_records_read_total",
			Help: "Records read from input worksheets.",
		}),
		RunsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_runs_built_total",
			Help: "Sealed AOI runs produced.",
		}),
		ContextsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_contexts_failed_total",
			Help: "Contexts skipped because of malformed or unsorted records.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoirun_malformed_records_total",
			Help: "Records rejected during load.",
		}),
	}

	m.registry.MustRegister(
		m.FilesProcessed, m.FilesFailed, m.RecordsRead,
		m.RunsBuilt, m.ContextsFailed, m.MalformedRecords,
	)

	return m
}

// Gatherer exposes the underlying registry for scraping or tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Push sends the counters to a Prometheus Pushgateway under the given job
// name. Batch jobs have no scrape endpoint, so push is the delivery path.
func (m *Metrics) Push(gatewayURL, job string) error {
	err := push.New(gatewayURL, job).Gatherer(m.registry).Push()
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}

	return nil
}
