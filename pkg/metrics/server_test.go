package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	server := NewServer(":0", reg) // :0 lets OS pick available port

	require.NotNil(t, server)
	require.NotNil(t, server.httpServer)
	require.Equal(t, ":0", server.httpServer.Addr)
}

// startTestServer starts a server on addr and registers a graceful shutdown
// for the end of the test.
func startTestServer(t *testing.T, addr string, reg *prometheus.Registry) {
	t.Helper()
	server := NewServer(addr, reg)
	errCh := server.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, server.Shutdown(ctx))
		// A clean shutdown closes the channel without an error.
		require.NoError(t, <-errCh)
	})
	// Give the listener time to come up.
	time.Sleep(50 * time.Millisecond)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// A sampling run in progress must be scrapeable: the watermarks and error
// counters it has touched show up on /metrics with the run's labels.
func TestServer_ScrapeSamplingRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewWithLabels(reg, Labels{Experiment: "surface_memory", Distance: 5, Environment: "test"})
	require.NoError(t, err)

	m.UpdateSamplerProgress(500, 2)
	m.RecordSamplerBatch(nil, 0.25)
	m.IncError(ErrTypeMatching)

	startTestServer(t, "127.0.0.1:19091", reg)

	status, body := get(t, "http://127.0.0.1:19091/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "decoder_sampler_shots")
	require.Contains(t, body, "decoder_sampler_logical_errors")
	require.Contains(t, body, "decoder_sampler_batch_duration_seconds")
	require.Contains(t, body, "decoder_errors_total")
	require.Contains(t, body, `experiment="surface_memory"`)
	require.Contains(t, body, `distance="5"`)
}

func TestServer_HealthEndpoint(t *testing.T) {
	startTestServer(t, "127.0.0.1:19092", prometheus.NewRegistry())

	status, body := get(t, "http://127.0.0.1:19092/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)
}
