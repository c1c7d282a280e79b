// pkg/metrics/metrics_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: prometheus registry, temp dir
// PURPOSE: Verify collectors register and export to a textfile

package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Rounds.Inc()
	m.Rounds.Inc()
	m.RecompileAll.WithLabelValues(ReasonThreshold).Inc()
	m.Builds.WithLabelValues("OK").Inc()
	m.SourcesCompiled.WithLabelValues("javac").Add(3)

	path := filepath.Join(t.TempDir(), "incr.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `incr_recompile_all_total{reason="threshold"} 1`)
	assert.Contains(t, string(data), "incr_rounds_total 2")
	assert.Contains(t, string(data), `incr_sources_compiled_total{compiler="javac"} 3`)
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.Rounds.Inc()

	// unregistered collectors can still be registered later
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.Rounds))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, 1.0, families[0].GetMetric()[0].GetCounter().GetValue())
}
