package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Experiment:  "surface_memory_z",
				Distance:    5,
				Environment: "production",
			},
			expected: prometheus.Labels{
				"experiment":  "surface_memory_z",
				"distance":    "5",
				"environment": "production",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Experiment: "repetition",
			},
			expected: prometheus.Labels{
				"experiment": "repetition",
			},
		},
		{
			name: "zero distance excluded",
			labels: Labels{
				Distance:    0,
				Environment: "test",
			},
			expected: prometheus.Labels{
				"environment": "test",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.labels.toPrometheusLabels()
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Verify metrics are registered by checking the registry
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	labels := Labels{
		Experiment: "surface_memory_z",
		Distance:   5,
	}

	m, err := NewWithLabels(reg, labels)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Update a metric and verify the labels are applied
	m.UpdateSamplerProgress(1000, 7)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)

	for _, mf := range metricFamilies {
		if mf.GetName() == "decoder_sampler_shots" {
			require.NotEmpty(t, mf.GetMetric())
			metric := mf.GetMetric()[0]

			labelMap := make(map[string]string)
			for _, label := range metric.GetLabel() {
				labelMap[label.GetName()] = label.GetValue()
			}
			require.Equal(t, "surface_memory_z", labelMap["experiment"])
			require.Equal(t, "5", labelMap["distance"])
		}
	}
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	// Register first instance
	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	// All methods should handle nil receiver gracefully (no panic)
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncError(ErrTypeMatching)
	})
	require.NotPanics(t, func() {
		m.RecordBatchDecode(100, 300, 0.5)
	})
	require.NotPanics(t, func() {
		m.AddLogicalErrors(3)
	})
	require.NotPanics(t, func() {
		m.AddShotsInFlight(10)
	})
	require.NotPanics(t, func() {
		m.UpdateSamplerProgress(1000, 5)
	})
	require.NotPanics(t, func() {
		m.RecordSamplerBatch(nil, 0.1)
	})
	require.NotPanics(t, func() {
		m.RecordSamplerBatch(errors.New("error"), 0.1)
	})
}

func TestMetrics_IncError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncError(ErrTypeMatching)
	m.IncError(ErrTypeMatching)
	m.IncError(ErrTypeIO)

	count := testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeMatching))
	require.Equal(t, float64(2), count)

	count = testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeIO))
	require.Equal(t, float64(1), count)
}

func TestMetrics_RecordBatchDecode(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordBatchDecode(100, 300, 0.25)

	require.Equal(t, float64(100), testutil.ToFloat64(m.shotsDecoded))
	require.Equal(t, float64(300), testutil.ToFloat64(m.windowDecodes))

	m.RecordBatchDecode(50, 150, 0.1)

	require.Equal(t, float64(150), testutil.ToFloat64(m.shotsDecoded))
	require.Equal(t, float64(450), testutil.ToFloat64(m.windowDecodes))

	// Verify histogram has observations
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "decoder_batch_decode_duration_seconds" {
			found = true
			histogram := mf.GetMetric()[0].GetHistogram()
			require.Equal(t, uint64(2), histogram.GetSampleCount())
		}
	}
	require.True(t, found, "histogram metric not found")
}

func TestMetrics_AddLogicalErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.AddLogicalErrors(3)
	require.Equal(t, float64(3), testutil.ToFloat64(m.logicalErrors))

	m.AddLogicalErrors(0)
	m.AddLogicalErrors(-1)
	require.Equal(t, float64(3), testutil.ToFloat64(m.logicalErrors))

	m.AddLogicalErrors(2)
	require.Equal(t, float64(5), testutil.ToFloat64(m.logicalErrors))
}

func TestMetrics_ShotsInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	require.Equal(t, float64(0), testutil.ToFloat64(m.shotsInFlight))

	m.AddShotsInFlight(256)
	require.Equal(t, float64(256), testutil.ToFloat64(m.shotsInFlight))

	m.AddShotsInFlight(-256)
	require.Equal(t, float64(0), testutil.ToFloat64(m.shotsInFlight))
}

func TestMetrics_UpdateSamplerProgress(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.UpdateSamplerProgress(1000, 5)

	require.Equal(t, float64(1000), testutil.ToFloat64(m.samplerShots))
	require.Equal(t, float64(5), testutil.ToFloat64(m.samplerErrors))
	require.Equal(t, 0.005, testutil.ToFloat64(m.samplerErrorRate))

	// Zero shots must not divide
	m.UpdateSamplerProgress(0, 0)
	require.Equal(t, float64(0), testutil.ToFloat64(m.samplerShots))
	require.Equal(t, 0.005, testutil.ToFloat64(m.samplerErrorRate))
}

func TestMetrics_RecordSamplerBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordSamplerBatch(nil, 0.05)
	m.RecordSamplerBatch(nil, 0.07)
	m.RecordSamplerBatch(errors.New("matcher unavailable"), 1.0)

	require.Equal(t, float64(2), testutil.ToFloat64(m.batchesSampled.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.batchesSampled.WithLabelValues(StatusError)))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "decoder_sampler_batch_duration_seconds" {
			found = true
			histogram := mf.GetMetric()[0].GetHistogram()
			require.Equal(t, uint64(3), histogram.GetSampleCount())
		}
	}
	require.True(t, found, "sampler batch duration histogram not found")
}

func TestNamespace(t *testing.T) {
	require.Equal(t, "decoder", Namespace)
}

func TestErrorTypeConstants(t *testing.T) {
	require.Equal(t, "invalid_input", ErrTypeInvalidInput)
	require.Equal(t, "matching", ErrTypeMatching)
	require.Equal(t, "io", ErrTypeIO)
}
