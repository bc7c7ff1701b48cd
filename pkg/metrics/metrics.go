package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "decoder"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Matching = "matching"
	Sampler  = "sampler"
)

// Labels holds constant labels applied to all metrics.
// These distinguish metrics from concurrent estimation runs.
type Labels struct {
	Experiment  string // Experiment name (e.g., "surface_memory_z")
	Distance    int    // Code distance of the decoded circuit
	Environment string // Deployment environment (e.g., "production", "staging", "development")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Experiment != "" {
		labels["experiment"] = l.Experiment
	}
	if l.Distance != 0 {
		labels["distance"] = strconv.Itoa(l.Distance)
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	return labels
}

type Metrics struct {
	// Decoding counters
	shotsDecoded  prometheus.Counter
	windowDecodes prometheus.Counter
	logicalErrors prometheus.Counter
	errors        *prometheus.CounterVec

	// Decoding latency
	batchDecodeDuration prometheus.Histogram
	shotsInFlight       prometheus.Gauge

	// Sampler progress
	samplerShots        prometheus.Gauge
	samplerErrors       prometheus.Gauge
	samplerErrorRate    prometheus.Gauge
	batchesSampled      *prometheus.CounterVec
	batchSampleDuration prometheus.Histogram
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., experiment), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all
// metrics. This is useful when several estimation runs report to one Prometheus
// instance and need to be filtered by experiment or distance.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	// Wrap the registerer with constant labels if any are provided
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

// newMetrics is the internal constructor that creates and registers all metrics.
func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		shotsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shots_decoded_total",
			Help:      "Total number of shots decoded",
		}),
		windowDecodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Matching,
			Name:      "window_decodes_total",
			Help:      "Total number of window decodes handed to the matching oracle",
		}),
		logicalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "logical_errors_total",
			Help:      "Total number of shots whose prediction disagreed with the observed observables",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		batchDecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_decode_duration_seconds",
			Help:      "Time to decode one batch of shots end-to-end",
			// Buckets cover typical batch decode latencies: 1ms, 5ms, 10ms,
			// 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, 30s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		shotsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "shots_in_flight",
			Help:      "Number of shots currently being decoded",
		}),
		samplerShots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Sampler,
			Name:      "shots",
			Help:      "Shots consumed by the sampler so far",
		}),
		samplerErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Sampler,
			Name:      "logical_errors",
			Help:      "Logical errors observed by the sampler so far",
		}),
		samplerErrorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Sampler,
			Name:      "shot_error_rate",
			Help:      "Running logical error rate per shot",
		}),
		batchesSampled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Sampler,
			Name:      "batches_total",
			Help:      "Total sampler batches by status",
		}, []string{"status"}),
		batchSampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Sampler,
			Name:      "batch_duration_seconds",
			Help:      "Time to read, decode, and score one sampler batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}

	err := errors.Join(
		reg.Register(m.shotsDecoded),
		reg.Register(m.windowDecodes),
		reg.Register(m.logicalErrors),
		reg.Register(m.errors),
		reg.Register(m.batchDecodeDuration),
		reg.Register(m.shotsInFlight),
		reg.Register(m.samplerShots),
		reg.Register(m.samplerErrors),
		reg.Register(m.samplerErrorRate),
		reg.Register(m.batchesSampled),
		reg.Register(m.batchSampleDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for non-matching errors (matching failures are tracked
// via batchesSampled{status="error"}).
const (
	ErrTypeInvalidInput = "invalid_input"
	ErrTypeMatching     = "matching"
	ErrTypeIO           = "io"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordBatchDecode records a completed batch decode: the shot count, the
// number of window decodes it issued, and its duration.
func (m *Metrics) RecordBatchDecode(shots, windowDecodes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.shotsDecoded.Add(float64(shots))
	m.windowDecodes.Add(float64(windowDecodes))
	m.batchDecodeDuration.Observe(durationSeconds)
}

// AddLogicalErrors records shots whose prediction disagreed with the
// observed observable flips.
func (m *Metrics) AddLogicalErrors(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.logicalErrors.Add(float64(count))
}

// AddShotsInFlight adds to the in-flight shot gauge; pass a negative count
// when shots complete.
func (m *Metrics) AddShotsInFlight(count int) {
	if m == nil {
		return
	}
	m.shotsInFlight.Add(float64(count))
}

// UpdateSamplerProgress updates the sampler progress gauges.
func (m *Metrics) UpdateSamplerProgress(shots, logicalErrors uint64) {
	if m == nil {
		return
	}
	m.samplerShots.Set(float64(shots))
	m.samplerErrors.Set(float64(logicalErrors))
	if shots > 0 {
		m.samplerErrorRate.Set(float64(logicalErrors) / float64(shots))
	}
}

// RecordSamplerBatch records a sampler batch outcome with duration.
// Pass nil error for successful batches, non-nil for failures.
func (m *Metrics) RecordSamplerBatch(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.batchesSampled.WithLabelValues(status).Inc()
	m.batchSampleDuration.Observe(durationSeconds)
}
