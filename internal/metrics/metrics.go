// Package metrics counts workbench activity with Prometheus collectors.
// The CLI is short lived, so counters are exported through the node
// exporter textfile format rather than scraped. Each invocation starts
// from zero and replaces the file, so the counters describe the last run
// only; last_run_timestamp_seconds tells runs apart.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vertextoedge/stockfill/internal/domain/event"
)

const namespace = "stockfill"

// Recorder turns domain events into Prometheus metrics
type Recorder struct {
	registry *prometheus.Registry

	uploadsTotal    *prometheus.CounterVec
	processingTotal *prometheus.CounterVec
	processedRows   prometheus.Counter
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	downloadedBytes prometheus.Counter
	downloadsTotal  *prometheus.CounterVec
	lastSuccessRate prometheus.Gauge
	lastRun         prometheus.Gauge

	now func() time.Time
}

// New creates a Recorder with its own registry
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry(), now: time.Now}

	r.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Spreadsheet uploads by result (accepted/rejected)",
		},
		[]string{"result"},
	)

	r.processingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_total",
			Help:      "Processing runs by data source and result",
		},
		[]string{"source", "result", "kind"},
	)

	r.processedRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "processed_rows_total",
		Help:      "Rows processed by the server",
	})

	r.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_attempts_total",
			Help:      "Download strategy attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	r.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_attempt_duration_seconds",
			Help:      "Duration of download strategy attempts",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	r.downloadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Bytes saved by the buffered fetch strategy",
	})

	r.downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Fallback chain runs by final result",
		},
		[]string{"result"},
	)

	r.lastSuccessRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_rate_percent",
		Help:      "Match success rate of the most recent processing run",
	})

	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the exported counters were written; counters cover that run only",
	})

	r.registry.MustRegister(
		r.uploadsTotal,
		r.processingTotal,
		r.processedRows,
		r.attemptsTotal,
		r.attemptDuration,
		r.downloadedBytes,
		r.downloadsTotal,
		r.lastSuccessRate,
		r.lastRun,
	)

	return r
}

// Registry returns the registry holding all collectors
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handle implements event.EventHandler
func (r *Recorder) Handle(ev event.DomainEvent) error {
	switch e := ev.(type) {
	case event.FileUploaded:
		r.uploadsTotal.WithLabelValues("accepted").Inc()
	case event.FileRejected:
		r.uploadsTotal.WithLabelValues("rejected").Inc()
	case event.ProcessingCompleted:
		r.processingTotal.WithLabelValues(e.Source, "success", "").Inc()
		r.processedRows.Add(float64(e.Total))
		r.lastSuccessRate.Set(e.SuccessRate)
	case event.ProcessingFailed:
		r.processingTotal.WithLabelValues(e.Source, "failure", string(e.Kind)).Inc()
	case event.StrategyAttempted:
		r.attemptsTotal.WithLabelValues(e.Attempt.Strategy, string(e.Attempt.Outcome)).Inc()
		r.attemptDuration.WithLabelValues(e.Attempt.Strategy).Observe(e.Attempt.Duration.Seconds())
		if e.Attempt.Bytes > 0 {
			r.downloadedBytes.Add(float64(e.Attempt.Bytes))
		}
	case event.DownloadCompleted:
		r.downloadsTotal.WithLabelValues(string(e.Outcome)).Inc()
	case event.DownloadExhausted:
		r.downloadsTotal.WithLabelValues("exhausted").Inc()
	}
	return nil
}

// HandledEvents implements event.EventHandler
func (r *Recorder) HandledEvents() []string {
	return []string{event.AllEvents}
}

// WriteTextfile replaces path with this run's metrics in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	r.lastRun.Set(float64(r.now().Unix()))
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
