// Package metrics provides custom Prometheus metrics for the skyglow pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts the work done by registration, statistics and
// publishing runs.
type PipelineMetrics struct {
	imagesTotal          *prometheus.CounterVec
	registrationDuration prometheus.Histogram

	measurementsTotal *prometheus.CounterVec
	statsDuration     prometheus.Histogram
	pendingImages     prometheus.Gauge

	publishRunsTotal     *prometheus.CounterVec
	publishPagesTotal    prometheus.Counter
	publishRecordsTotal  prometheus.Counter
	publishDuration      prometheus.Histogram
	lastPublishTimestamp prometheus.Gauge

	runsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers the pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	runBuckets := prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12) // 100ms to ~3.4min

	m.imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_registration_images_total",
			Help: "Images seen by registration, by outcome",
		},
		[]string{"outcome"},
	)
	m.registrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyglow_registration_duration_seconds",
		Help:    "Duration of registration runs",
		Buckets: runBuckets,
	})

	m.measurementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_stats_images_total",
			Help: "Images processed by the statistics engine, by outcome",
		},
		[]string{"outcome"},
	)
	m.statsDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyglow_stats_duration_seconds",
		Help:    "Duration of statistics runs",
		Buckets: runBuckets,
	})
	m.pendingImages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyglow_stats_pending_images",
		Help: "Pending images found at the start of the last statistics run",
	})

	m.publishRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_publish_runs_total",
			Help: "Publishing runs, by status",
		},
		[]string{"status"},
	)
	m.publishPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyglow_publish_pages_total",
		Help: "Pages sent to the publishing endpoint",
	})
	m.publishRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyglow_publish_records_total",
		Help: "Measurements marked as published",
	})
	m.publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyglow_publish_duration_seconds",
		Help:    "Duration of publishing runs",
		Buckets: runBuckets,
	})
	m.lastPublishTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyglow_publish_last_success_timestamp_seconds",
		Help: "Unix time of the last successful publishing run",
	})

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyglow_pipeline_runs_total",
			Help: "Pipeline invocations, by exit code",
		},
		[]string{"exit_code"},
	)

	m.collectors = []prometheus.Collector{
		m.imagesTotal, m.registrationDuration,
		m.measurementsTotal, m.statsDuration, m.pendingImages,
		m.publishRunsTotal, m.publishPagesTotal, m.publishRecordsTotal, m.publishDuration, m.lastPublishTimestamp,
		m.runsTotal,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordImages adds n images with the given registration outcome
func (m *PipelineMetrics) RecordImages(outcome string, n int) {
	if n > 0 {
		m.imagesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordRegistrationDuration observes one registration run
func (m *PipelineMetrics) RecordRegistrationDuration(d time.Duration) {
	m.registrationDuration.Observe(d.Seconds())
}

// RecordStats records one statistics run
func (m *PipelineMetrics) RecordStats(pending, measured, flagged int, d time.Duration) {
	m.pendingImages.Set(float64(pending))
	if measured > 0 {
		m.measurementsTotal.WithLabelValues(OutcomeMeasured).Add(float64(measured))
	}
	if flagged > 0 {
		m.measurementsTotal.WithLabelValues(OutcomeFlagged).Add(float64(flagged))
	}
	m.statsDuration.Observe(d.Seconds())
}

// RecordPublish records one publishing run. Records only count when the
// run succeeded, since nothing is marked otherwise.
func (m *PipelineMetrics) RecordPublish(pages int, published int64, d time.Duration, err error) {
	m.publishPagesTotal.Add(float64(pages))
	m.publishDuration.Observe(d.Seconds())
	if err != nil {
		m.publishRunsTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.publishRunsTotal.WithLabelValues(StatusSuccess).Inc()
	m.publishRecordsTotal.Add(float64(published))
	m.lastPublishTimestamp.SetToCurrentTime()
}

// RecordRun counts one pipeline invocation
func (m *PipelineMetrics) RecordRun(exitCode int) {
	m.runsTotal.WithLabelValues(fmt.Sprint(exitCode)).Inc()
}
