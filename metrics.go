package cascache

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a cascache.Hooks implementation that exports Prometheus
// counters and gauges for the coordinator's high-signal events.
// Grounded on IvanBrykalov-shardcache's metrics/prom.Adapter for the
// registry-and-constant-labels constructor shape, and on
// subculture-collective-reddit-cluster-map's CircuitBreakerState /
// CircuitBreakerTrips gauge+counter pair for the breaker metrics.
type Metrics struct {
	selfHealFile    *prometheus.CounterVec
	collapsed       prometheus.Counter
	collapsedWait   prometheus.Histogram
	breakerState    prometheus.Gauge
	breakerTrips    prometheus.Counter
	selfHealReplica *prometheus.CounterVec
	reclaimRuns     prometheus.Counter
	reclaimFreed    prometheus.Counter
	reclaimFiles    prometheus.Counter
	invalidated     *prometheus.CounterVec
}

var _ Hooks = (*Metrics)(nil)

// NewMetrics constructs a Prometheus-backed Hooks and registers its
// collectors with reg. A nil reg registers against
// prometheus.DefaultRegisterer. ns and sub namespace every metric name
// as "<ns>_<sub>_<metric>".
func NewMetrics(reg prometheus.Registerer, ns, sub string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		selfHealFile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "self_heal_file_total",
			Help: "File-tier records removed on read due to corruption or expiry, by reason.",
		}, []string{"reason"}),

		collapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "collapsed_loads_total",
			Help: "GetOrCreate calls whose factory execution was shared by at least one other waiter.",
		}),

		collapsedWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "collapsed_waiters",
			Help:    "Number of callers that observed a single-flight result, including the leader.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),

		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "breaker_state",
			Help: "Distributed-tier circuit breaker state (0=closed, 1=half_open, 2=open).",
		}),

		breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "breaker_trips_total",
			Help: "Times the distributed-tier circuit breaker opened.",
		}),

		selfHealReplica: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "self_heal_replica_total",
			Help: "Distributed-store calls that failed with a replica error and were retried after reconnect.",
		}, []string{"method"}),

		reclaimRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "reclaim_runs_total",
			Help: "File-tier free-space reclaim passes that deleted at least one file.",
		}),

		reclaimFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "reclaim_freed_bytes_total",
			Help: "Bytes freed by the file-tier reclaim loop.",
		}),

		reclaimFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "reclaim_files_total",
			Help: "Files removed by the file-tier reclaim loop.",
		}),

		invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "invalidations_total",
			Help: "Key-change notifications handled, by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.selfHealFile, m.collapsed, m.collapsedWait, m.breakerState, m.breakerTrips,
		m.selfHealReplica, m.reclaimRuns, m.reclaimFreed, m.reclaimFiles, m.invalidated,
	)
	return m
}

func (m *Metrics) SelfHealFile(_, reason string) { m.selfHealFile.WithLabelValues(reason).Inc() }

func (m *Metrics) Collapsed(_ string, waiters int) {
	m.collapsedWait.Observe(float64(waiters))
	if waiters > 1 {
		m.collapsed.Inc()
	}
}

func (m *Metrics) BreakerStateChanged(state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
		m.breakerTrips.Inc()
	}
	m.breakerState.Set(v)
}

func (m *Metrics) SelfHealReplica(method string, _ error) {
	m.selfHealReplica.WithLabelValues(method).Inc()
}

func (m *Metrics) ReclaimRun(freed int64, files int) {
	if files == 0 {
		return
	}
	m.reclaimRuns.Inc()
	m.reclaimFreed.Add(float64(freed))
	m.reclaimFiles.Add(float64(files))
}

func (m *Metrics) Invalidated(_, action string) { m.invalidated.WithLabelValues(action).Inc() }
