// Package metrics exposes build counters through Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incr"

// Recompile-all reasons
const (
	ReasonNoOutput       = "no_output"
	ReasonRebuild        = "rebuild_requested"
	ReasonNoState        = "no_state"
	ReasonCorruptState   = "corrupt_state"
	ReasonFlags          = "flags_changed"
	ReasonClasspath      = "classpath_changed"
	ReasonThreshold      = "threshold"
	ReasonLibraryLoad    = "library_load_failed"
	ReasonGraph          = "graph"
	ReasonNonIncremental = "non_incremental"
	ReasonEscalated      = "escalated"
)

// Metrics holds the build collectors
type Metrics struct {
	Rounds          prometheus.Counter
	SourcesCompiled *prometheus.CounterVec
	RecompileAll    *prometheus.CounterVec
	Builds          *prometheus.CounterVec
	BuildDuration   prometheus.Histogram
}

// New creates the collectors and registers them on reg when it is not nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Compile rounds run.",
		}),
		SourcesCompiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_compiled_total",
			Help:      "Sources handed to compilers, by compiler.",
		}, []string{"compiler"}),
		RecompileAll: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompile_all_total",
			Help:      "Builds or rounds that recompiled the whole target, by reason.",
		}, []string{"reason"}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Finished builds, by result.",
		}, []string{"result"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of builds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Rounds, m.SourcesCompiled, m.RecompileAll, m.Builds, m.BuildDuration)
	}
	return m
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
