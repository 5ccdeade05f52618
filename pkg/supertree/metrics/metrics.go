// Package metrics exports run results as a Prometheus textfile for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tdilauro/dm-utils/pkg/supertree/pipeline"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

const namespace = "supertree"

// Metrics holds the gauges of one process. Each Observe replaces the
// previous run's values.
type Metrics struct {
	registry *prometheus.Registry

	entries      *prometheus.GaugeVec
	bytesHashed  prometheus.Gauge
	unreadable   prometheus.Gauge
	malformed    prometheus.Gauge
	duration     prometheus.Gauge
	success      prometheus.Gauge
	lastRunStamp prometheus.Gauge
}

// New returns Metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// entries counts manifest rows of the last run.
		// Labels: kind (file, directory, symlink, ...)
		entries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Manifest entries written by the last run, by kind",
		}, []string{"kind"}),

		bytesHashed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bytes_hashed_total",
			Help:      "Bytes of regular file content hashed by the last run",
		}),

		unreadable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unreadable_total",
			Help:      "Entries recorded with an error marker by the last run",
		}),

		malformed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "malformed_lines_total",
			Help:      "Listing lines skipped as malformed by the last run",
		}),

		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),

		success: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run committed its manifest, 0 otherwise",
		}),

		lastRunStamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of a run that finished at finished.
func (m *Metrics) Observe(stats pipeline.Stats, ok bool, finished time.Time) {
	for _, kind := range types.AllKinds() {
		m.entries.WithLabelValues(kind.String()).Set(float64(stats.ByKind[kind]))
	}
	m.bytesHashed.Set(float64(stats.Bytes))
	m.unreadable.Set(float64(stats.Unreadable))
	m.malformed.Set(float64(stats.Skipped))
	m.duration.Set(stats.Duration.Seconds())
	m.lastRunStamp.Set(float64(finished.Unix()))

	if ok {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}
}

// WriteTextfile writes the metrics to path, replacing it atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
