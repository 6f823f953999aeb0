package gc

import "github.com/prometheus/client_golang/prometheus"

// metricsSet is the collector's prometheus instrumentation, the
// concrete body SPEC_FULL.md §11 gives the spec's §4.J callback/
// profiling-hooks component in addition to the six function-pointer
// chains callbacks.go implements.
type metricsSet struct {
	liveBytes     prometheus.Gauge
	allocBytes    prometheus.Counter
	cyclesTotal   *prometheus.CounterVec
	pauseSeconds  prometheus.Histogram
	intervalGauge prometheus.Gauge
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &metricsSet{
		liveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corevm_gc",
			Name:      "live_bytes",
			Help:      "Bytes live as of the last completed collection.",
		}),
		allocBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corevm_gc",
			Name:      "alloc_bytes_total",
			Help:      "Cumulative bytes allocated through pool and big-object allocators.",
		}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corevm_gc",
			Name:      "cycles_total",
			Help:      "Completed collection cycles, labeled by kind.",
		}, []string{"kind"}),
		pauseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "corevm_gc",
			Name:      "pause_seconds",
			Help:      "Stop-the-world pause duration per collection.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		intervalGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corevm_gc",
			Name:      "interval_bytes",
			Help:      "Current allocation-counter interval.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.liveBytes, m.allocBytes, m.cyclesTotal, m.pauseSeconds, m.intervalGauge,
	} {
		// Registration is idempotent from the caller's point of view:
		// a second Collector in the same process (e.g. in tests) using
		// the same registerer would conflict, so tests pass a fresh
		// prometheus.NewRegistry() via WithMetricsRegisterer.
		_ = reg.Register(c)
	}
	return m
}

func (m *metricsSet) observeCycle(kind string, pauseSeconds float64, live, allocatedDelta int64, interval int64) {
	m.cyclesTotal.WithLabelValues(kind).Inc()
	m.pauseSeconds.Observe(pauseSeconds)
	m.liveBytes.Set(float64(live))
	if allocatedDelta > 0 {
		m.allocBytes.Add(float64(allocatedDelta))
	}
	m.intervalGauge.Set(float64(interval))
}
