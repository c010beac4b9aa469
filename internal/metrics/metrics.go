// Package metrics exposes scan, job, image and provider metrics to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/questhold/questhold/internal/jobs"
	"github.com/questhold/questhold/internal/library/domain"
)

const namespace = "questhold"

// Metrics holds the application collectors. It satisfies the scan service's
// metrics hook and provides observers for the other components.
type Metrics struct {
	scansTotal       *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
	scanPathsTotal   *prometheus.CounterVec
	scansInProgress  prometheus.Gauge
	jobRunsTotal     *prometheus.CounterVec
	imageDownloads   *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registry
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of finished library scans",
			},
			[]string{"type", "status"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Time taken by library scans",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
			},
			[]string{"type"},
		),
		scanPathsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_paths_total",
				Help:      "Total number of paths handled by scans",
			},
			[]string{"outcome"},
		),
		scansInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_in_progress",
			Help:      "Number of library scans currently running",
		}),
		jobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Total number of scheduled job runs",
			},
			[]string{"job", "status"},
		),
		imageDownloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_downloads_total",
				Help:      "Total number of image acquisitions by result",
			},
			[]string{"result"},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of metadata provider calls",
			},
			[]string{"provider", "outcome"},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.scansTotal.Describe(ch)
	m.scanDuration.Describe(ch)
	m.scanPathsTotal.Describe(ch)
	m.scansInProgress.Describe(ch)
	m.jobRunsTotal.Describe(ch)
	m.imageDownloads.Describe(ch)
	m.providerRequests.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.scansTotal.Collect(ch)
	m.scanDuration.Collect(ch)
	m.scanPathsTotal.Collect(ch)
	m.scansInProgress.Collect(ch)
	m.jobRunsTotal.Collect(ch)
	m.imageDownloads.Collect(ch)
	m.providerRequests.Collect(ch)
}

func (m *Metrics) ScanStarted(scanType domain.ScanType) {
	m.scansInProgress.Inc()
}

func (m *Metrics) ScanFinished(scanType domain.ScanType, status domain.ScanStatus, elapsed time.Duration) {
	m.scansInProgress.Dec()
	m.scansTotal.WithLabelValues(string(scanType), string(status)).Inc()
	m.scanDuration.WithLabelValues(string(scanType)).Observe(elapsed.Seconds())
}

func (m *Metrics) PathProcessed(outcome string) {
	m.scanPathsTotal.WithLabelValues(outcome).Inc()
}

// ObserveJobRun counts a recorded job run.
func (m *Metrics) ObserveJobRun(job string, status jobs.RunStatus) {
	m.jobRunsTotal.WithLabelValues(job, string(status)).Inc()
}

// ObserveImageDownload counts an image acquisition result.
func (m *Metrics) ObserveImageDownload(result string) {
	m.imageDownloads.WithLabelValues(result).Inc()
}

// ObserveProviderRequest counts a metadata provider call.
func (m *Metrics) ObserveProviderRequest(provider string, outcome domain.ProviderOutcome) {
	m.providerRequests.WithLabelValues(provider, string(outcome)).Inc()
}
